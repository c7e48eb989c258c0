package unlock

import "i4.energy/across/emtool/at"

// Setting is one declarative set-mode command of a device profile.
type Setting struct {
	Verb string
	Args []at.Arg
}

// Profile is an ordered list of settings applied before a reset.
type Profile []Setting

// GenericProfile restores the Sierra Wireless branding of an EM7455 that was
// shipped with an OEM identity: Sierra's USB vendor id, the MBIM/QMI product
// id pair, the product string and the generic carrier package.
var GenericProfile = Profile{
	{Verb: at.CmdUsbVid, Args: []at.Arg{at.Int(1199)}},
	{Verb: at.CmdUsbPid, Args: []at.Arg{at.Int(9071), at.Int(9070)}},
	{Verb: at.CmdUsbProduct, Args: []at.Arg{at.String("EM7455")}},
	{Verb: at.CmdPriID, Args: []at.Arg{at.String("9904609"), at.String("002.026"), at.String("Generic-M2M")}},
}
