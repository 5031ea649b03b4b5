// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-kms.
//
// go-kms is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package kmserror defines the closed set of failure kinds reported by the
// signing daemon and the rules that classify errors from every other package
// into exactly one of them.
//
// Callers branch on kind only:
//
//	if errors.Is(err, kmserror.DoubleSign) {
//		// refuse to sign and stop the process
//	}
//
// The original cause is kept in the error chain for diagnostics.
package kmserror
