// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

package database

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameConflict   = errors.New("username already exists")
	ErrLastAdmin          = errors.New("cannot delete the last admin user")
	ErrServerNotFound     = errors.New("server not found")
	ErrStreamNotFound     = errors.New("stream not found")
	ErrPermissionNotFound = errors.New("permission not found")
	ErrDuplicateGrant     = errors.New("permission grant already exists")
)
