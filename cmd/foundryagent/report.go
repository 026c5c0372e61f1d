//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/evalresult"
	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/status"
	"trpc.group/trpc-go/trpc-agent-foundry/workflow"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	skipStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

const timeLayout = "2006-01-02 15:04:05"

func newReportCommand(a *app) *cobra.Command {
	var appName string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Inspect stored evaluation reports",
	}
	cmd.PersistentFlags().StringVar(&appName, "app", workflow.EvaluationAgentName, "agent name the reports are stored under")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openReportStore(a)
			if err != nil {
				return err
			}
			defer store.Close()
			ids, err := store.List(cmd.Context(), appName)
			if err != nil {
				return err
			}
			reports := make([]*evalresult.Report, 0, len(ids))
			for _, id := range ids {
				r, err := store.Get(cmd.Context(), appName, id)
				if err != nil {
					return err
				}
				reports = append(reports, r)
			}
			return renderReportList(a.out, appName, reports)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <report-id>",
		Short: "Show the metrics and rows of one report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openReportStore(a)
			if err != nil {
				return err
			}
			defer store.Close()
			r, err := store.Get(cmd.Context(), appName, args[0])
			if err != nil {
				return err
			}
			return renderReport(a.out, r)
		},
	})
	return cmd
}

func openReportStore(a *app) (evalresult.Manager, error) {
	store, err := openStore(a.cfg)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New("result store is disabled")
	}
	return store, nil
}

// renderReportList prints one line per report, newest first.
func renderReportList(w io.Writer, appName string, reports []*evalresult.Report) error {
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].CreatedAt.After(reports[j].CreatedAt)
	})
	var b strings.Builder
	b.WriteString(titleStyle.Render("Reports of "+appName) + "\n\n")
	if len(reports) == 0 {
		b.WriteString(dimStyle.Render("No reports stored.") + "\n")
		_, err := io.WriteString(w, b.String())
		return err
	}
	rows := [][]string{{"ID", "CREATED", "ROWS", "METRICS"}}
	for _, r := range reports {
		rows = append(rows, []string{
			r.ID,
			r.CreatedAt.Local().Format(timeLayout),
			fmt.Sprint(len(r.Rows)),
			fmt.Sprint(len(r.Metrics)),
		})
	}
	writeTable(&b, rows, nil)
	_, err := io.WriteString(w, b.String())
	return err
}

// renderReport prints the aggregate metrics and the per row outputs.
func renderReport(w io.Writer, r *evalresult.Report) error {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Report "+r.ID) + "\n\n")
	b.WriteString(dimStyle.Render("Created: "+r.CreatedAt.Local().Format(timeLayout)) + "\n")
	if r.DataFile != "" {
		b.WriteString(dimStyle.Render("Data:    "+r.DataFile) + "\n")
	}
	if r.StudioURL != "" {
		b.WriteString(dimStyle.Render("Studio:  "+r.StudioURL) + "\n")
	}
	b.WriteString("\n")

	rows := [][]string{{"METRIC", "VALUE", "STATUS"}}
	var styles []lipgloss.Style
	for _, name := range r.MetricNames() {
		m := r.Metrics[name]
		value := "-"
		if m.Value != nil {
			value = fmt.Sprintf("%.4g", *m.Value)
		}
		state := m.Status.String()
		if m.Reason != "" {
			state += " (" + m.Reason + ")"
		}
		rows = append(rows, []string{name, value, state})
		styles = append(styles, statusStyle(m.Status))
	}
	writeTable(&b, rows, styles)

	for i, row := range r.Rows {
		fmt.Fprintf(&b, "\n%s\n", headerStyle.Render(fmt.Sprintf("Row %d  thread %s  run %s", i+1, row.ThreadID, row.RunID)))
		keys := make([]string, 0, len(row.Outputs))
		for k := range row.Outputs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %v\n", k, row.Outputs[k])
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func statusStyle(s status.EvalStatus) lipgloss.Style {
	switch s {
	case status.EvalStatusPassed:
		return passStyle
	case status.EvalStatusFailed:
		return failStyle
	case status.EvalStatusNotEvaluated:
		return skipStyle
	default:
		return dimStyle
	}
}

// writeTable pads every column to its widest cell. rows[0] is the header;
// styles, when set, colors the last cell of each body row.
func writeTable(b *strings.Builder, rows [][]string, styles []lipgloss.Style) {
	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}
	for r, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			style := lipgloss.NewStyle().Width(widths[i] + 2)
			switch {
			case r == 0:
				style = style.Inherit(headerStyle)
			case i == len(row)-1 && r-1 < len(styles):
				style = style.Inherit(styles[r-1])
			}
			cells[i] = style.Render(cell)
		}
		b.WriteString(strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, cells...), " ") + "\n")
	}
}
