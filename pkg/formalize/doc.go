// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package formalize assigns semantic placeholder types to template
// arguments.
//
// Each argument expression is matched against the keyword sets of a
// Registry; when several types match, one is drawn from the formalizer's
// random source so repeated runs with the same seed give the same output.
package formalize
