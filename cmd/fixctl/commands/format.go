package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

// errUnsupportedFormat is returned when the requested output format is not supported.
var errUnsupportedFormat = errors.New("unsupported output format")

// formatSessions renders a slice of sessions in the requested format.
func formatSessions(sessions []sessionView, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatJSONValue(sessions)
	case formatTable:
		return formatSessionsTable(sessions), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

// formatSession renders a single session in the requested format.
func formatSession(s sessionView, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatJSONValue(s)
	case formatTable:
		return formatSessionDetail(s), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

func formatJSONValue(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal to JSON: %w", err)
	}
	return string(data) + "\n", nil
}

func formatSessionsTable(sessions []sessionView) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BEGIN\tSENDER\tTARGET\tSTATE\tLOGGED-ON\tNEXT-OUT\tNEXT-IN")

	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%d\t%d\n",
			s.BeginString, s.SenderCompID, s.TargetCompID,
			s.ConnectionState, s.LoggedOn, s.NextSenderSeqNum, s.NextTargetSeqNum,
		)
	}

	_ = w.Flush()
	return buf.String()
}

func formatSessionDetail(s sessionView) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "Begin String:\t%s\n", s.BeginString)
	fmt.Fprintf(w, "Sender Comp ID:\t%s\n", s.SenderCompID)
	if s.SenderSubID != "" {
		fmt.Fprintf(w, "Sender Sub ID:\t%s\n", s.SenderSubID)
	}
	fmt.Fprintf(w, "Target Comp ID:\t%s\n", s.TargetCompID)
	if s.TargetSubID != "" {
		fmt.Fprintf(w, "Target Sub ID:\t%s\n", s.TargetSubID)
	}
	fmt.Fprintf(w, "Connection State:\t%s\n", s.ConnectionState)
	fmt.Fprintf(w, "Logged On:\t%t\n", s.LoggedOn)
	fmt.Fprintf(w, "Next Sender Seq Num:\t%d\n", s.NextSenderSeqNum)
	fmt.Fprintf(w, "Next Target Seq Num:\t%d\n", s.NextTargetSeqNum)

	_ = w.Flush()
	return buf.String()
}
