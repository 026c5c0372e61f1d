//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package evalresult

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// defaultResultFileSuffix is the default suffix for report files.
const defaultResultFileSuffix = ".evaluation_report.json"

// Locator provides Build and List methods for locating report files.
type Locator interface {
	// Build builds the path of a report file for the given appName and reportID.
	Build(baseDir, appName, reportID string) string
	// List lists all report IDs for the given appName.
	List(baseDir, appName string) ([]string, error)
}

// NewLocator returns the default Locator, which stores reports as
// <baseDir>/<appName>/<reportID>.evaluation_report.json.
func NewLocator() Locator {
	return &locator{}
}

type locator struct {
}

// Build builds the path of a report file.
func (l *locator) Build(baseDir, appName, reportID string) string {
	return filepath.Join(baseDir, appName, reportID+defaultResultFileSuffix)
}

// List lists all report IDs for the given appName.
func (l *locator) List(baseDir, appName string) ([]string, error) {
	dir := filepath.Join(baseDir, appName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}
	results := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), defaultResultFileSuffix) {
			results = append(results, strings.TrimSuffix(entry.Name(), defaultResultFileSuffix))
		}
	}
	sort.Strings(results)
	return results, nil
}
