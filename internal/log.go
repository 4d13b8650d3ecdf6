// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

// Package internal holds small ambient concerns shared across the
// module: logging setup today, following the teacher's habit of a thin
// internal package rather than scattering logrus configuration at each
// call site.
package internal

import (
	"context"
	"fmt"
	"os"

	"github.com/matrix-org/util"
	"github.com/sirupsen/logrus"
)

// SetupLogging configures the standard logrus logger's level and
// formatter. level is one of logrus's parseable level strings
// ("debug", "info", "warn", "error"); an empty string defaults to info.
func SetupLogging(level string) error {
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("internal: invalid log level %q: %w", level, err)
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logrus.SetOutput(os.Stderr)
	return nil
}

// Logger returns a request-scoped entry, pulling a request/txn id out of
// ctx via matrix-org/util's context logger if one was attached, and
// otherwise falling back to the standard logger.
func Logger(ctx context.Context) *logrus.Entry {
	return util.GetLogger(ctx)
}
