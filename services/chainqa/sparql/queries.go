// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sparql

import "fmt"

// CountVar is the projection variable of the count queries.
const CountVar = "number"

// CountObjectQuery counts the triples that have uri as object.
func CountObjectQuery(uri string) string {
	return fmt.Sprintf("SELECT (COUNT(*) AS ?%s) WHERE {\n\t?subject ?predicate <%s> . }", CountVar, uri)
}

// CountSubjectQuery counts the triples that have uri as subject.
func CountSubjectQuery(uri string) string {
	return fmt.Sprintf("SELECT (COUNT(*) AS ?%s) WHERE {\n\t<%s> ?predicate ?object . }", CountVar, uri)
}
