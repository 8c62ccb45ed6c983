package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Player:
		o.printPlayer(v)
	case PlayerList:
		o.printPlayerList(v)
	case TokenResult:
		o.printTokenResult(v)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// Player response type (matches API)
type Player struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Level    int    `json:"level"`
	XP       int    `json:"xp"`
	Energy   int    `json:"energy"`
	Health   int    `json:"health"`
	Faction  string `json:"faction"`
	Rarity   string `json:"rarity"`
	Type     string `json:"type"`
}

// PlayerList is the response of the list endpoint
type PlayerList []Player

// TokenResult is the response of register and login
type TokenResult struct {
	Token string `json:"token"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
	Server string `json:"server,omitempty"`
}

func (o *Output) printPlayer(p Player) {
	fmt.Fprintf(o.w, "Player: %s (%s)\n", p.Username, p.ID)
	fmt.Fprintf(o.w, "Type: %s  Rarity: %s  Faction: %s\n", p.Type, p.Rarity, p.Faction)
	fmt.Fprintf(o.w, "Level: %d  XP: %d  Energy: %d  Health: %d\n", p.Level, p.XP, p.Energy, p.Health)
}

func (o *Output) printPlayerList(list PlayerList) {
	if len(list) == 0 {
		fmt.Fprintln(o.w, "No players")
		return
	}

	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tTYPE\tRARITY\tLEVEL\tXP\tENERGY\tHEALTH\tFACTION")
	for _, p := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			p.ID, p.Username, p.Type, p.Rarity, p.Level, p.XP, p.Energy, p.Health, p.Faction)
	}
	_ = tw.Flush()
}

func (o *Output) printTokenResult(t TokenResult) {
	fmt.Fprintf(o.w, "Token: %s\n", t.Token)
}

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Fprintf(o.w, "Status: %s\n", h.Status)
	if h.Server != "" {
		fmt.Fprintf(o.w, "Server: %s\n", h.Server)
	}
}
