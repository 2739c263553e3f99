package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/collab/internal/scoring"
	"github.com/dyluth/collab/pkg/collab"
)

// Summary is the full end-of-run report.
type Summary struct {
	RunID       string            `json:"run_id"`
	Epoch       uint64            `json:"epoch"`
	Phase       collab.Phase      `json:"phase"`
	LockState   collab.LockState  `json:"lock_state"`
	Forced      bool              `json:"forced,omitempty"`
	StopReason  collab.StopReason `json:"stop_reason,omitempty"`
	Quota       int               `json:"quota"`
	Counts      StatusCounts      `json:"counts"`
	Selected    []Entry           `json:"selected"`
	Waiting     []Entry           `json:"waiting"`
	Timeline    TimelineData      `json:"timeline"`
	Shares      []Share           `json:"reach_shares"`
	ROI         []ROIPoint        `json:"roi"`
	CostPerSlot *int64            `json:"cost_per_slot,omitempty"`
}

// Build assembles every projection of a snapshot into one Summary.
func Build(snap collab.Snapshot, scorer scoring.Scorer, price PriceRange) Summary {
	s := Summary{
		RunID:      snap.RunID,
		Epoch:      snap.Epoch,
		Phase:      snap.Phase,
		LockState:  snap.LockState,
		Forced:     snap.Forced,
		StopReason: snap.StopReason,
		Quota:      snap.Quota,
		Counts:     Counts(snap),
		Selected:   TopSelected(snap, scorer),
		Waiting:    WaitingList(snap, scorer),
		Timeline:   Timeline(snap),
		Shares:     ReachShares(snap, scorer),
		ROI:        ROISeries(snap, scorer),
	}
	if cost, ok := CostPerSlot(price, snap.Quota); ok {
		s.CostPerSlot = &cost
	}
	return s
}

// FormatTable writes the summary as human-readable tables.
func FormatTable(w io.Writer, s Summary) {
	fmt.Fprintf(w, "Run %s (epoch %d): %s\n", formatID(s.RunID), s.Epoch, formatOutcome(s))
	fmt.Fprintf(w, "Accepted %d/%d, rejected %d, pending %d\n\n",
		s.Counts.Accepted, s.Quota, s.Counts.Rejected, s.Counts.Pending)

	if len(s.Selected) == 0 {
		fmt.Fprintln(w, "No candidates selected")
	} else {
		fmt.Fprintf(w, "Selected (%d):\n", len(s.Selected))
		writeEntries(w, s.Selected)
	}

	if len(s.Waiting) > 0 {
		fmt.Fprintf(w, "\nWaiting list (%d):\n", len(s.Waiting))
		writeEntries(w, s.Waiting)
	}

	if len(s.ROI) > 0 {
		fmt.Fprint(w, "\nProjected ROI:")
		for _, p := range s.ROI {
			fmt.Fprintf(w, " %d:%d%%", p.Step, p.ROI)
		}
		fmt.Fprintln(w)
	}

	if s.CostPerSlot != nil {
		fmt.Fprintf(w, "Estimated cost per slot: %d\n", *s.CostPerSlot)
	}
}

// FormatJSON writes the summary as pretty-printed JSON.
func FormatJSON(w io.Writer, s Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary to JSON: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}

	fmt.Fprintln(w)
	return nil
}

// FormatEvent writes one run event as a single human-readable line.
func FormatEvent(w io.Writer, evt *collab.Event) {
	line := fmt.Sprintf("%-8s #%-4d %-20s %d/%d", formatClock(evt.TimestampMs), evt.Seq, evt.Type, evt.AcceptedCount, evt.Quota)
	if evt.CandidateID != 0 {
		line += fmt.Sprintf("  candidate %d -> %s", evt.CandidateID, evt.Status)
	}
	if evt.Reason != "" {
		line += fmt.Sprintf("  (%s)", evt.Reason)
	}
	fmt.Fprintln(w, line)
}

// FormatEventJSONL writes one run event as a single line of JSON.
func FormatEventJSONL(w io.Writer, evt *collab.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event to JSON: %w", err)
	}

	if _, err := fmt.Fprintf(w, "%s\n", string(data)); err != nil {
		return fmt.Errorf("failed to write JSONL output: %w", err)
	}
	return nil
}

func writeEntries(w io.Writer, entries []Entry) {
	fmt.Fprintf(w, "%-5s %-24s %-8s %-9s %-6s %-6s %s\n",
		"ID", "NAME", "NICHE", "FOLLOWERS", "ER%", "AUTH%", "REACH")
	fmt.Fprintf(w, "%-5s %-24s %-8s %-9s %-6s %-6s %s\n",
		"-----", "------------------------", "--------", "---------", "------", "------", "--------")

	for _, e := range entries {
		fmt.Fprintf(w, "%-5d %-24s %-8s %-9s %-6.1f %-6.0f %d\n",
			e.ID,
			formatName(e.Name),
			formatNiche(e.Niche),
			formatFollowers(e.Followers),
			e.Engagement,
			e.Authenticity,
			e.Reach,
		)
	}
}

func formatOutcome(s Summary) string {
	switch s.Phase {
	case collab.PhaseLocked:
		if s.Forced {
			return "locked (forced)"
		}
		return "locked"
	case collab.PhaseStopped:
		return fmt.Sprintf("stopped (%s)", s.StopReason)
	}
	return string(s.Phase)
}

// formatID truncates the run ID to its first 8 characters.
func formatID(id string) string {
	if id == "" {
		return "-"
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatName(name string) string {
	if len(name) > 24 {
		return name[:21] + "..."
	}
	return name
}

func formatNiche(n collab.Niche) string {
	if n == "" {
		return "-"
	}
	return string(n)
}

// formatFollowers shows follower counts as "42k" above a thousand.
func formatFollowers(n int64) string {
	if n >= 1000 {
		return fmt.Sprintf("%dk", (n+500)/1000)
	}
	return fmt.Sprintf("%d", n)
}

// formatClock renders a millisecond timestamp as local wall-clock time.
func formatClock(timestampMs int64) string {
	if timestampMs == 0 {
		return "-"
	}
	return time.UnixMilli(timestampMs).Format("15:04:05")
}
