package ui

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mum4k/termdash"
	"github.com/mum4k/termdash/cell"
	"github.com/mum4k/termdash/container"
	"github.com/mum4k/termdash/container/grid"
	"github.com/mum4k/termdash/keyboard"
	"github.com/mum4k/termdash/linestyle"
	"github.com/mum4k/termdash/terminal/tcell"
	"github.com/mum4k/termdash/terminal/terminalapi"
	"github.com/mum4k/termdash/widgets/text"
)

const redrawInterval = 250 * time.Millisecond

const (
	PanelTitle     = "title"
	PanelProfit    = "profit"
	PanelOrderBook = "orderbook"
	PanelLogs      = "logs"
)

var panelOrder = []string{PanelTitle, PanelOrderBook, PanelProfit, PanelLogs}

type panel struct {
	widget *text.Text
	title  string
	style  string
}

// Dashboard renders the title, order book, profit and log panels in the terminal.
type Dashboard struct {
	mu     sync.Mutex
	panels map[string]*panel
	root   *container.Container
}

func NewDashboard() (*Dashboard, error) {
	d := &Dashboard{panels: make(map[string]*panel, len(panelOrder))}
	titles := map[string]string{
		PanelTitle:     " Spot arbitrage ",
		PanelOrderBook: " Order books ",
		PanelProfit:    " Profit ",
		PanelLogs:      " Logs ",
	}
	for _, name := range panelOrder {
		widget, err := text.New(text.RollContent(), text.WrapAtWords())
		if err != nil {
			return nil, fmt.Errorf("failed to create text widget for %s: %v", name, err)
		}
		d.panels[name] = &panel{widget: widget, title: titles[name], style: "white"}
	}
	return d, nil
}

// Color maps a style name to a terminal color. Unknown names are white.
func Color(style string) cell.Color {
	switch style {
	case "green":
		return cell.ColorGreen
	case "red":
		return cell.ColorRed
	case "yellow":
		return cell.ColorYellow
	case "blue":
		return cell.ColorBlue
	case "cyan":
		return cell.ColorCyan
	default:
		return cell.ColorWhite
	}
}

// Update replaces a panel's content and sets its title and border color.
// Unknown panels are ignored.
func (d *Dashboard) Update(name, content, title, borderStyle string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.panels[name]
	if !ok {
		return
	}
	if title != "" {
		p.title = " " + title + " "
	}
	if borderStyle != "" {
		p.style = borderStyle
	}
	_ = p.widget.Write(content, text.WriteReplace(), text.WriteCellOpts(cell.FgColor(Color(p.style))))

	if d.root != nil {
		_ = d.root.Update(name, container.BorderTitle(p.title), container.BorderColor(Color(p.style)))
	}
}

// Write appends log output to the logs panel.
func (d *Dashboard) Write(b []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.panels[PanelLogs].widget.Write(string(b)); err != nil {
		return 0, err
	}
	return len(b), nil
}

// Title returns the current title of a panel.
func (d *Dashboard) Title(name string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.panels[name]; ok {
		return p.title
	}
	return ""
}

func (d *Dashboard) element(name string) grid.Element {
	p := d.panels[name]
	return grid.Widget(p.widget,
		container.ID(name),
		container.Border(linestyle.Light),
		container.BorderTitle(p.title),
		container.BorderColor(Color(p.style)),
	)
}

func (d *Dashboard) layout() ([]container.Option, error) {
	builder := grid.New()
	builder.Add(
		grid.RowHeightPerc(10, d.element(PanelTitle)),
		grid.RowHeightPerc(45,
			grid.ColWidthPerc(60, d.element(PanelOrderBook)),
			grid.ColWidthPerc(40, d.element(PanelProfit)),
		),
		grid.RowHeightPerc(45, d.element(PanelLogs)),
	)
	return builder.Build()
}

// Run draws the dashboard until ctx is done or the user presses q or Esc, in
// which case quit is called.
func (d *Dashboard) Run(ctx context.Context, quit context.CancelFunc) error {
	t, err := tcell.New(tcell.ColorMode(terminalapi.ColorMode256))
	if err != nil {
		return fmt.Errorf("failed to initialize terminal: %v", err)
	}
	defer t.Close()

	d.mu.Lock()
	gridOpts, err := d.layout()
	if err != nil {
		d.mu.Unlock()
		return fmt.Errorf("failed to build grid layout: %v", err)
	}
	c, err := container.New(t, gridOpts...)
	if err != nil {
		d.mu.Unlock()
		return fmt.Errorf("failed to create root container: %v", err)
	}
	d.root = c
	d.mu.Unlock()

	quitter := func(k *terminalapi.Keyboard) {
		if k.Key == 'q' || k.Key == 'Q' || k.Key == keyboard.KeyEsc {
			quit()
		}
	}
	return termdash.Run(ctx, t, c, termdash.KeyboardSubscriber(quitter), termdash.RedrawInterval(redrawInterval))
}
