//go:build !sqlite
// +build !sqlite

package seenstore

import (
	"errors"

	logx "resaleradar/pkg/logx"
)

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	_ = cfg
	_ = log
	return nil, errors.New("sqlite seenstore not built: build with -tags sqlite")
}
