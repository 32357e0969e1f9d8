package models

import (
	"errors"
	"testing"
)

func TestCommandValidate(t *testing.T) {
	cases := []struct {
		name    string
		cmd     Command
		wantErr bool
	}{
		{"wallpaper with url", Command{Kind: CmdWallpaper, URL: "http://x/y.png"}, false},
		{"wallpaper without url", Command{Kind: CmdWallpaper}, true},
		{"wallpaper with file", Command{Kind: CmdWallpaper, File: []byte{1, 2}, FileName: "w.png"}, false},
		{"marquee without url", Command{Kind: CmdMarquee}, true},
		{"textscreen with text", Command{Kind: CmdTextScreen, Text: "HELLO"}, false},
		{"textscreen without text", Command{Kind: CmdTextScreen}, true},
		{"key without combo", Command{Kind: CmdKeyCombo}, true},
		{"key with combo", Command{Kind: CmdKeyCombo, Text: "ctrl+alt+del"}, false},
		{"parameterless effect", Command{Kind: CmdDrunk}, false},
		{"uninstall without origin", Command{Kind: CmdUninstall}, false},
		{"unknown kind", Command{Kind: "reboot"}, true},
	}

	for _, tc := range cases {
		err := tc.cmd.Validate()
		if tc.wantErr && err == nil {
			t.Errorf("%s: expected validation error, got nil", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
		}
		if tc.wantErr && err != nil && KindOf(err) != ErrInvalidInput {
			t.Errorf("%s: expected invalid_input, got %s", tc.name, KindOf(err))
		}
	}
}

func TestClearsSelectionPolicy(t *testing.T) {
	keeps := []CommandKind{CmdClones, CmdDrunk, CmdConfetti, CmdSpotlight, CmdWaveScreen, CmdDVDBounce, CmdFireworks, CmdReverse}
	for _, kind := range keeps {
		if (Command{Kind: kind}).ClearsSelection() {
			t.Errorf("%s should keep the selection open", kind)
		}
	}

	clears := []CommandKind{CmdWallpaper, CmdMarquee, CmdParticles, CmdTextScreen, CmdUninstall, CmdUpdate, CmdLock, CmdScreenshot}
	for _, kind := range clears {
		if !(Command{Kind: kind}).ClearsSelection() {
			t.Errorf("%s should clear the selection", kind)
		}
	}
}

func TestKindOf(t *testing.T) {
	if kind := KindOf(&CommandError{Kind: ErrRateLimited}); kind != ErrRateLimited {
		t.Errorf("expected rate_limited, got %s", kind)
	}
	// Errors from outside the gateway count as transport failures.
	if kind := KindOf(errors.New("connection refused")); kind != ErrTransport {
		t.Errorf("expected transport, got %s", kind)
	}
}
