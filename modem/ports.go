package modem

import (
	"fmt"
	"slices"
	"strings"

	"go.bug.st/serial/enumerator"
)

// USB identifiers of a Sierra Wireless EM7455 in its default composition.
const (
	SierraVID = "1199"
	EM7455PID = "9071"
)

// Port describes a serial port present on the host.
type Port struct {
	Name         string
	Product      string
	SerialNumber string
	IsUSB        bool
	VID          string
	PID          string
}

func (p Port) String() string {
	if !p.IsUSB {
		return p.Name
	}
	return fmt.Sprintf("%s: %s [ID %s:%s]", p.Name, p.Product, strings.ToLower(p.VID), strings.ToLower(p.PID))
}

// ListPorts enumerates the serial ports of the host, sorted by name.
func ListPorts() ([]Port, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}

	ports := make([]Port, 0, len(details))
	for _, d := range details {
		ports = append(ports, Port{
			Name:         d.Name,
			Product:      d.Product,
			SerialNumber: d.SerialNumber,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
		})
	}
	slices.SortFunc(ports, func(a, b Port) int { return strings.Compare(a.Name, b.Name) })
	return ports, nil
}

// GuessModemPort picks the port most likely to be the EM7455 AT interface:
// a port with the EM7455 USB identifiers whose product names a modem, or
// failing that the first port with those identifiers.
func GuessModemPort(ports []Port) (Port, bool) {
	var candidates []Port
	for _, p := range ports {
		if p.IsUSB && strings.EqualFold(p.VID, SierraVID) && strings.EqualFold(p.PID, EM7455PID) {
			candidates = append(candidates, p)
		}
	}
	for _, p := range candidates {
		if strings.Contains(strings.ToLower(p.Product), "modem") {
			return p, true
		}
	}
	if len(candidates) > 0 {
		return candidates[0], true
	}
	return Port{}, false
}
