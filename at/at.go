package at

const (
	// Terminal Control
	CR   = "\r"
	CRLF = "\r\n"

	// Prefix starts every request line
	Prefix = "AT"

	// Response Codes
	OK       = "OK"
	ERROR    = "ERROR"
	CmeError = "+CME ERROR:"
	CmsError = "+CMS ERROR:"
)

// Standard and Sierra Wireless vendor commands, without the AT prefix.
const (
	CmdEchoOff       = "E0"
	CmdInfo          = "I"
	CmdReset         = "!RESET"
	CmdEnterCnd      = "!ENTERCND"
	CmdOpenLock      = "!OPENLOCK"
	CmdNvImeiUnlock  = "!NVIMEIUNLOCK"
	CmdNvEncryptImei = "!NVENCRYPTIMEI"
	CmdUsbVid        = "!USBVID"
	CmdUsbPid        = "!USBPID"
	CmdUsbProduct    = "!USBPRODUCT"
	CmdPriID         = "!PRIID"
)

// LineType is the role a single response line plays in a round trip.
type LineType int

const (
	TypeData  LineType = iota // Intermediate command output (+CGMI: ...)
	TypeOK                    // OK
	TypeError                 // ERROR, +CME ERROR: n, +CMS ERROR: n
)

// Status is the classification of a complete response.
type Status int

const (
	// Incomplete means no terminal line was observed before the read ended.
	Incomplete Status = iota
	Ok
	Err
)

func (s Status) String() string {
	switch s {
	case Ok:
		return "ok"
	case Err:
		return "error"
	default:
		return "incomplete"
	}
}
