// Copyright 2025 KrakLabs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package contract guards the persistence boundary.
//
// Every formalized template passes ValidateRecord before it is written:
//
//	res := contract.ValidateRecord(contract.Record{
//	    Template:  "Loaded {Count} rows",
//	    Arguments: []string{"n"},
//	    Raw:       `log.info("Loaded {} rows", n)`,
//	}, 0)
//	if !res.OK {
//	    // drop and count the record
//	}
//
// A record must be non-empty valid UTF-8, carry one argument per
// placeholder (typed "{Name}" or untyped "{}"), and stay under the soft
// byte limit. The limit defaults to 64 KiB and can be changed with the
// LOGMINE_SOFT_LIMIT_BYTES environment variable.
package contract
