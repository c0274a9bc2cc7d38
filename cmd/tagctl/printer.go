package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/srg/tagctl/tag"
)

var (
	okColor   = color.New(color.FgGreen)
	infoColor = color.New(color.FgCyan)
	warnColor = color.New(color.FgYellow)
)

// eventPrinter renders flow progress the way the tag is operated by hand
type eventPrinter struct {
	w        io.Writer
	alertFor time.Duration
}

func (p *eventPrinter) Report(ev tag.Event) {
	switch ev.Kind {
	case tag.EventConnecting:
		name := "iTag"
		if ev.Label != "" {
			name = ev.Label + " iTag"
		}
		fmt.Fprintf(p.w, "Connecting to %s (%q)\n", name, ev.Address.String())
	case tag.EventConnected:
		fmt.Fprintln(p.w, okColor.Sprint("Connected"))
	case tag.EventBattery:
		fmt.Fprintf(p.w, "Battery: %s\n", infoColor.Sprintf("%d%%", ev.Battery))
	case tag.EventAlertOn:
		fmt.Fprintf(p.w, "Start fast-beeping for %gsec\n", p.alertFor.Seconds())
	case tag.EventAlertOff:
		fmt.Fprintln(p.w, "Stop fast-beeping")
	case tag.EventWaitingForPress:
		if ev.Press == 1 {
			fmt.Fprintf(p.w, "Listen for %dx iTag button presses\n", ev.Presses)
		}
		fmt.Fprintf(p.w, "Waiting for button press %d/%d\n", ev.Press, ev.Presses)
	case tag.EventPress:
		fmt.Fprintf(p.w, "Button press %d/%d detected. Custom characteristic was notified with value: %s\n",
			ev.Press, ev.Presses, infoColor.Sprintf("0x%02X", ev.Value))
	case tag.EventDisconnecting:
		fmt.Fprintln(p.w, "Disconnect")
		fmt.Fprintln(p.w, warnColor.Sprint("iTag will start slow-beeping. Press button to ack."))
	}
}
