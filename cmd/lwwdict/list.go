package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/sambigeara/lwwdict/pkg/crdt"
)

func runList(cmd *cobra.Command, _ []string) error {
	s, err := openLocalSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	includeAll, _ := cmd.Flags().GetBool("all")
	sections := collectSections(s.replica.Dictionary(), includeAll)
	renderSections(cmd.OutOrStdout(), sections)
	return nil
}

type listSection struct {
	title   string
	headers []string
	rows    [][]string
	footer  string
}

func collectSections(d *crdt.Dictionary[string, string], includeAll bool) []listSection {
	snap := d.Snapshot()

	keys := listSection{
		title:   "KEYS",
		headers: []string{"KEY", "VALUE", "TIMESTAMP"},
	}
	hidden := 0
	for _, e := range snap.Adds {
		if _, ok := d.Lookup(e.Key); !ok {
			hidden++
			continue
		}
		keys.rows = append(keys.rows, []string{e.Key, e.Value, formatTimestamp(e.Timestamp)})
	}

	if !includeAll {
		if hidden > 0 {
			keys.footer = fmt.Sprintf("removed keys: %d (use --all)", hidden)
		}
		if len(keys.rows) == 0 && keys.footer == "" {
			return nil
		}
		return []listSection{keys}
	}

	removed := listSection{
		title:   "TOMBSTONES",
		headers: []string{"KEY", "VALUE", "TIMESTAMP"},
	}
	for _, e := range snap.Removes {
		removed.rows = append(removed.rows, []string{e.Key, e.Value, formatTimestamp(e.Timestamp)})
	}

	var out []listSection
	for _, sec := range []listSection{keys, removed} {
		if len(sec.rows) > 0 {
			out = append(out, sec)
		}
	}
	return out
}

func formatTimestamp(ts crdt.Timestamp) string {
	return strconv.FormatInt(int64(ts), 10)
}

const (
	rowSection = iota
	rowHeader
	rowData
	rowSpacer
)

func renderSections(w io.Writer, sections []listSection) {
	if len(sections) == 0 {
		return
	}

	maxCols := 0
	for _, sec := range sections {
		maxCols = max(maxCols, len(sec.headers))
	}

	padRow := func(src []string) []string {
		row := make([]string, maxCols)
		copy(row, src)
		return row
	}

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(false).
		BorderColumn(false)

	var kinds []int
	for i, sec := range sections {
		if i > 0 {
			t.Row(padRow(nil)...)
			kinds = append(kinds, rowSpacer)
		}
		t.Row(padRow([]string{sec.title})...)
		kinds = append(kinds, rowSection)
		t.Row(padRow(sec.headers)...)
		kinds = append(kinds, rowHeader)
		for _, r := range sec.rows {
			t.Row(padRow(r)...)
			kinds = append(kinds, rowData)
		}
	}

	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4")).PaddingRight(2)
	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245")).PaddingRight(2)
	dataStyle := lipgloss.NewStyle().PaddingRight(2)

	t.StyleFunc(func(row, _ int) lipgloss.Style {
		if row < 0 || row >= len(kinds) {
			return dataStyle
		}
		switch kinds[row] {
		case rowSection:
			return sectionStyle
		case rowHeader:
			return headerStyle
		default:
			return dataStyle
		}
	})

	fmt.Fprintln(w, t)

	for _, sec := range sections {
		if sec.footer != "" {
			fmt.Fprintln(w)
			fmt.Fprintln(w, sec.footer)
		}
	}
}
