/*
 * VC5 load balancer. Copyright (C) 2021-present David Coles
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

// Package log defines the event-notification seam between the routing core
// and whatever a caller wants to do with it (print, ship to syslog, drop on
// the floor). The core never formats strings itself; it calls one of these
// methods with structured arguments.
package log

// KV is a free-form bag of fields attached to a notification.
type KV = map[string]any

// Log receives structured notifications from a running Connection. All
// methods must be safe to call from the Connection's own goroutine; Log
// implementations that fan out elsewhere (files, network) must do their own
// buffering so they never block the caller.
type Log interface {
	NOTICE(facility string, kv KV)
	WARNING(facility string, kv KV)
}

// Nil discards every notification. It is the default when no Log is
// supplied to Open.
type Nil struct{}

func (Nil) NOTICE(string, KV)  {}
func (Nil) WARNING(string, KV) {}
