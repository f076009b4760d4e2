// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sarathi Contributors

package openai

var (
	ConvertMessages = convertMessages
	ConvertTools    = convertTools
)
