//go:build dashboard

package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rivo/tview"
)

// probe is one polled endpoint's last observed outcome.
type probe struct {
	Endpoint string
	Status   int
	Duration string
}

var endpoints = []string{"/healthz", "/metrics"}

func fetchProbes(baseURL string) []probe {
	out := make([]probe, 0, len(endpoints))
	for _, ep := range endpoints {
		start := time.Now()
		resp, err := http.Get(baseURL + ep)
		status := 0
		if err == nil {
			status = resp.StatusCode
			resp.Body.Close()
		}
		out = append(out, probe{
			Endpoint: ep,
			Status:   status,
			Duration: time.Since(start).Round(time.Millisecond).String(),
		})
	}
	return out
}

// main runs a terminal dashboard that polls the ledger server's liveness
// and metrics endpoints once a second, a lightweight operator view
// alongside the Prometheus exposition the /metrics endpoint itself serves.
func main() {
	app := tview.NewApplication()
	table := tview.NewTable().SetBorders(true)

	update := func() {
		probes := fetchProbes("http://localhost:8080")
		app.QueueUpdateDraw(func() {
			table.Clear()
			headers := []string{"Endpoint", "Status", "Duration"}
			for i, h := range headers {
				table.SetCell(0, i, tview.NewTableCell(h).SetSelectable(false))
			}
			for i, p := range probes {
				table.SetCell(i+1, 0, tview.NewTableCell(p.Endpoint))
				table.SetCell(i+1, 1, tview.NewTableCell(fmt.Sprintf("%d", p.Status)))
				table.SetCell(i+1, 2, tview.NewTableCell(p.Duration))
			}
		})
	}

	go func() {
		for {
			update()
			time.Sleep(time.Second)
		}
	}()

	if err := app.SetRoot(table, true).Run(); err != nil {
		panic(err)
	}
}
