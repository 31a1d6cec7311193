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

// Package wire defines the node address type, packet headers and the
// fixed-size protocol constants that are carried on the radio, as laid out
// in the protocol's wire format.
package wire

import "fmt"

// Address is the fixed two-byte node identifier used throughout the
// network, equivalent to a Rime address in the original Contiki stack.
type Address [2]byte

// NullAddress is the sentinel meaning "no address" (no parent, no sender).
var NullAddress = Address{}

// IsNull reports whether a is the null sentinel.
func (a Address) IsNull() bool {
	return a == NullAddress
}

// Equal reports whether a and b are the same address.
func (a Address) Equal(b Address) bool {
	return a == b
}

func (a Address) String() string {
	return fmt.Sprintf("%d.%d", a[0], a[1])
}

// NewAddress builds an Address from its two constituent bytes, matching the
// original's u8[0].u8[1] addressing scheme.
func NewAddress(hi, lo uint8) Address {
	return Address{hi, lo}
}
