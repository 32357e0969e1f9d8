package models

// CommandKind identifies one remote-control action. The kind doubles as the
// server endpoint name for parameterless effects (/api/<kind>?id=...).
type CommandKind string

const (
	CmdWallpaper    CommandKind = "wallpaper"
	CmdMarquee      CommandKind = "marquee"
	CmdParticles    CommandKind = "particles"
	CmdReverse      CommandKind = "reverse"
	CmdShowDesktop  CommandKind = "showdesktop"
	CmdLock         CommandKind = "lock"
	CmdUninstall    CommandKind = "uninstall"
	CmdUpdate       CommandKind = "update"
	CmdClones       CommandKind = "clones"
	CmdDrunk        CommandKind = "drunk"
	CmdConfetti     CommandKind = "confetti"
	CmdSpotlight    CommandKind = "spotlight"
	CmdTextScreen   CommandKind = "textscreen"
	CmdWaveScreen   CommandKind = "wavescreen"
	CmdDVDBounce    CommandKind = "dvdbounce"
	CmdFireworks    CommandKind = "fireworks"
	CmdScreenshot   CommandKind = "screenshot"
	CmdKeyCombo     CommandKind = "key"
	CmdFakeTerminal CommandKind = "faketerminal"
)

// Command is one operator action plus its parameters. Commands are values
// constructed per dispatch and never retained.
type Command struct {
	Kind CommandKind `json:"kind"`
	// URL carries the media location for wallpaper/marquee/particles.
	URL string `json:"url,omitempty"`
	// Text carries the free-text parameter: the text-screen message, the
	// key combo, or the uninstall origin tag.
	Text string `json:"text,omitempty"`
	// File, when set, replaces URL for the media commands; the bytes are
	// uploaded as a multipart attachment instead.
	File     []byte `json:"-"`
	FileName string `json:"-"`
}

// IsUpload reports whether the command carries a binary attachment.
func (c Command) IsUpload() bool {
	return len(c.File) > 0
}

// Validate checks that the variant's required parameters are present.
// It runs before any network operation.
func (c Command) Validate() error {
	switch c.Kind {
	case CmdWallpaper, CmdMarquee, CmdParticles:
		if c.URL == "" && !c.IsUpload() {
			return &CommandError{Kind: ErrInvalidInput, Message: string(c.Kind) + ": url or file required"}
		}
	case CmdTextScreen:
		if c.Text == "" {
			return &CommandError{Kind: ErrInvalidInput, Message: "textscreen: text required"}
		}
	case CmdKeyCombo:
		if c.Text == "" {
			return &CommandError{Kind: ErrInvalidInput, Message: "key: combo required"}
		}
	case CmdReverse, CmdShowDesktop, CmdLock, CmdUninstall, CmdUpdate,
		CmdClones, CmdDrunk, CmdConfetti, CmdSpotlight, CmdWaveScreen,
		CmdDVDBounce, CmdFireworks, CmdScreenshot, CmdFakeTerminal:
		// No parameters.
	default:
		return &CommandError{Kind: ErrInvalidInput, Message: "unknown command kind: " + string(c.Kind)}
	}
	return nil
}

// ClearsSelection reports whether a successful dispatch of this kind exits
// selection mode. Content and system commands clear it; screen effects the
// operator commonly fires repeatedly keep the selection open.
func (c Command) ClearsSelection() bool {
	switch c.Kind {
	case CmdClones, CmdDrunk, CmdConfetti, CmdSpotlight, CmdWaveScreen,
		CmdDVDBounce, CmdFireworks, CmdReverse:
		return false
	}
	return true
}
