//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package sqlite provides a SQLite-backed evalresult.Manager implementation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/evalresult"
)

// TableNameReports is the base table name for evaluation reports.
const TableNameReports = "evaluation_reports"

// timeLayout has a fixed width so that text order is time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const (
	sqlCreateReportsTable = `CREATE TABLE IF NOT EXISTS %s (
		app_name    TEXT NOT NULL,
		report_id   TEXT NOT NULL,
		data_file   TEXT NOT NULL DEFAULT '',
		studio_url  TEXT NOT NULL DEFAULT '',
		metrics     TEXT NOT NULL,
		row_outputs TEXT NOT NULL,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL,
		PRIMARY KEY (app_name, report_id)
	)`
	sqlCreateReportsCreatedIndex = `CREATE INDEX IF NOT EXISTS idx_%s_app_created ON %s (app_name, created_at)`
)

var _ evalresult.Manager = (*manager)(nil)

type manager struct {
	db    *sql.DB
	table string
}

// New opens the database and creates the reports table.
func New(opts ...Option) (evalresult.Manager, error) {
	o := newOptions(opts...)
	if o.path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(o.path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", o.path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", o.path, err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	m := &manager{db: db, table: o.tablePrefix + TableNameReports}
	if !o.skipDBInit {
		ctx, cancel := context.WithTimeout(context.Background(), o.initTimeout)
		defer cancel()
		if err := m.ensureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init database failed: %w", err)
		}
	}
	return m, nil
}

func (m *manager) ensureSchema(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, fmt.Sprintf(sqlCreateReportsTable, m.table)); err != nil {
		return fmt.Errorf("create table %s: %w", m.table, err)
	}
	if _, err := m.db.ExecContext(ctx, fmt.Sprintf(sqlCreateReportsCreatedIndex, m.table, m.table)); err != nil {
		return fmt.Errorf("create index on %s: %w", m.table, err)
	}
	return nil
}

// Close implements evalresult.Manager.
func (m *manager) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}

// Save upserts a report.
func (m *manager) Save(ctx context.Context, appName string, report *evalresult.Report) (string, error) {
	if err := evalresult.Prepare(appName, report); err != nil {
		return "", err
	}
	metrics, err := json.Marshal(report.Metrics)
	if err != nil {
		return "", fmt.Errorf("marshal metrics: %w", err)
	}
	rows := report.Rows
	if rows == nil {
		rows = []evalresult.Row{}
	}
	rowsPayload, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("marshal rows: %w", err)
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (app_name, report_id, data_file, studio_url, metrics, row_outputs, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (app_name, report_id) DO UPDATE SET
		   data_file = excluded.data_file,
		   studio_url = excluded.studio_url,
		   metrics = excluded.metrics,
		   row_outputs = excluded.row_outputs,
		   updated_at = excluded.updated_at`,
		m.table,
	)
	now := time.Now().UTC().Format(timeLayout)
	if _, err := m.db.ExecContext(ctx, query, appName, report.ID, report.DataFile, report.StudioURL,
		string(metrics), string(rowsPayload), report.CreatedAt.UTC().Format(timeLayout), now); err != nil {
		return "", fmt.Errorf("store report %s.%s: %w", appName, report.ID, err)
	}
	return report.ID, nil
}

// Get loads a report.
func (m *manager) Get(ctx context.Context, appName, reportID string) (*evalresult.Report, error) {
	if err := evalresult.CheckGet(appName, reportID); err != nil {
		return nil, err
	}
	var (
		dataFile, studioURL string
		metrics, rows       string
		createdAt           string
	)
	query := fmt.Sprintf(
		"SELECT data_file, studio_url, metrics, row_outputs, created_at FROM %s WHERE app_name = ? AND report_id = ?",
		m.table,
	)
	err := m.db.QueryRowContext(ctx, query, appName, reportID).Scan(&dataFile, &studioURL, &metrics, &rows, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("report %s.%s not found: %w", appName, reportID, os.ErrNotExist)
		}
		return nil, fmt.Errorf("load report %s.%s: %w", appName, reportID, err)
	}
	report := &evalresult.Report{ID: reportID, DataFile: dataFile, StudioURL: studioURL}
	if err := json.Unmarshal([]byte(metrics), &report.Metrics); err != nil {
		return nil, fmt.Errorf("unmarshal metrics %s.%s: %w", appName, reportID, err)
	}
	if err := json.Unmarshal([]byte(rows), &report.Rows); err != nil {
		return nil, fmt.Errorf("unmarshal rows %s.%s: %w", appName, reportID, err)
	}
	if report.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at %s.%s: %w", appName, reportID, err)
	}
	return report, nil
}

// List lists report IDs for appName, newest first.
func (m *manager) List(ctx context.Context, appName string) ([]string, error) {
	if appName == "" {
		return nil, errors.New("app name is empty")
	}
	query := fmt.Sprintf(
		"SELECT report_id FROM %s WHERE app_name = ? ORDER BY created_at DESC, report_id",
		m.table,
	)
	rs, err := m.db.QueryContext(ctx, query, appName)
	if err != nil {
		return nil, fmt.Errorf("list reports for app %s: %w", appName, err)
	}
	defer rs.Close()
	ids := []string{}
	for rs.Next() {
		var id string
		if err := rs.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rs.Err()
}
