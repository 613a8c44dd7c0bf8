// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"strconv"
	"strings"
)

// Cell is one value of a result row.
type Cell struct {
	Name     string `json:"name,omitempty"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
}

// Results is an evaluated result table.
type Results struct {
	Columns []string `json:"columns,omitempty"`
	Rows    [][]Cell `json:"rows"`
}

// Len returns the number of rows.
func (r Results) Len() int {
	return len(r.Rows)
}

// LastColumnDatatype returns the datatype of the last cell of the first
// row, or "" when there are no rows.
func (r Results) LastColumnDatatype() string {
	if len(r.Rows) == 0 || len(r.Rows[0]) == 0 {
		return ""
	}
	row := r.Rows[0]
	return row[len(row)-1].Datatype
}

// IsTemporal reports whether datatype names a date or time type.
func IsTemporal(datatype string) bool {
	d := strings.ToLower(datatype)
	return strings.Contains(d, "date") || strings.Contains(d, "time")
}

// FirstInt reads the named column of the first row as an integer. When
// name is empty the first cell is used. Missing or malformed values
// yield 0.
func (r Results) FirstInt(name string) int64 {
	if len(r.Rows) == 0 || len(r.Rows[0]) == 0 {
		return 0
	}
	row := r.Rows[0]
	cell := row[0]
	if name != "" {
		for _, c := range row {
			if c.Name == name {
				cell = c
				break
			}
		}
	}
	n, err := strconv.ParseInt(strings.TrimSpace(cell.Value), 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(strings.TrimSpace(cell.Value), 64)
		if ferr != nil {
			return 0
		}
		return int64(f)
	}
	return n
}
