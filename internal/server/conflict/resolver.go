// Package conflict decides which side of a concurrent edit wins using
// last-write-wins at record granularity.
package conflict

import (
	"fmt"
	"time"
)

// Resolution names the winning side of a conflict.
type Resolution string

const (
	ClientWins Resolution = "client_wins"
	ServerWins Resolution = "server_wins"
)

// Stamp is the part of a record that conflict resolution looks at.
type Stamp struct {
	Version   int64
	UpdatedAt time.Time
}

// Decision is the outcome of comparing a server and a client stamp. When
// Conflict is false the stamps agree and nothing needs to be written.
type Decision struct {
	Conflict   bool
	Resolution Resolution
	Reason     string
}

// ClientWon reports whether the client record must overwrite the server one.
func (d Decision) ClientWon() bool {
	return d.Conflict && d.Resolution == ClientWins
}

// Resolve compares versions first; the higher version wins. Equal versions are
// not a conflict. Ties that reach the timestamp comparison favour the server.
func Resolve(server, client Stamp) Decision {
	switch {
	case server.Version == client.Version:
		return Decision{}
	case client.Version > server.Version:
		return Decision{
			Conflict:   true,
			Resolution: ClientWins,
			Reason:     fmt.Sprintf("Client version (%d) > Server version (%d)", client.Version, server.Version),
		}
	case server.Version > client.Version:
		return Decision{
			Conflict:   true,
			Resolution: ServerWins,
			Reason:     fmt.Sprintf("Server version (%d) > Client version (%d)", server.Version, client.Version),
		}
	default:
		return tiebreak(server, client)
	}
}

func tiebreak(server, client Stamp) Decision {
	if client.UpdatedAt.After(server.UpdatedAt) {
		return Decision{
			Conflict:   true,
			Resolution: ClientWins,
			Reason: fmt.Sprintf("Client timestamp (%s) > Server timestamp (%s)",
				formatTime(client.UpdatedAt), formatTime(server.UpdatedAt)),
		}
	}
	return Decision{
		Conflict:   true,
		Resolution: ServerWins,
		Reason: fmt.Sprintf("Server timestamp (%s) >= Client timestamp (%s)",
			formatTime(server.UpdatedAt), formatTime(client.UpdatedAt)),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
