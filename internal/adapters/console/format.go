package console

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rivo/tview"

	"github.com/okian/flightboard/internal/domain/display"
)

const keyHelp = "[gray]c[-] consistency check  [gray]q[-] quit"

func headerText(snap display.Snapshot) string {
	label := snap.LastUpdated
	if label == "" {
		label = "never"
	}
	return fmt.Sprintf("Last updated: [white]%s[-]    %s", tview.Escape(label), keyHelp)
}

// regionTitle shows the payload size and age next to the region id.
func regionTitle(r display.Region, now time.Time) string {
	if r.UpdatedAt.IsZero() {
		return " " + r.ID + " "
	}
	return fmt.Sprintf(" %s (%s, %s) ", r.ID,
		humanize.Bytes(uint64(len(r.Text))),
		humanize.RelTime(r.UpdatedAt, now, "ago", "from now"))
}

// bannerText renders banners newest first, matching the web page.
func bannerText(banners []display.Banner) string {
	var b strings.Builder
	for i, banner := range banners {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Something happened at %s!\n  %s\n", tview.Escape(banner.When), tview.Escape(banner.Message))
	}
	return b.String()
}
