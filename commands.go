// go-msp
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-msp.
//
// go-msp is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-msp is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-msp; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package msp

import "fmt"

// Message ids of the flight controller firmware
const (
	MSPAPIVersion         uint16 = 1
	MSPFCVariant          uint16 = 2
	MSPFCVersion          uint16 = 3
	MSPBoardInfo          uint16 = 4
	MSPBuildInfo          uint16 = 5
	MSPName               uint16 = 10
	MSPSetName            uint16 = 11
	MSPReboot             uint16 = 68
	MSPDataflashSummary   uint16 = 70
	MSPDataflashRead      uint16 = 71
	MSPDataflashErase     uint16 = 72
	MSPSDCardSummary      uint16 = 79
	MSPBlackboxConfig     uint16 = 80
	MSPSetBlackboxConfig  uint16 = 81
	MSPStatus             uint16 = 101
	MSPAnalog             uint16 = 110
	MSPUID                uint16 = 160
	MSPEEPROMWrite        uint16 = 250
	MSP2CommonTZ          uint16 = 0x1001
	MSP2CommonSetTZ       uint16 = 0x1002
	msp2FirstExtendedOnly uint16 = 0x1000
)

var messageNames = map[uint16]string{
	MSPAPIVersion:        "MSP_API_VERSION",
	MSPFCVariant:         "MSP_FC_VARIANT",
	MSPFCVersion:         "MSP_FC_VERSION",
	MSPBoardInfo:         "MSP_BOARD_INFO",
	MSPBuildInfo:         "MSP_BUILD_INFO",
	MSPName:              "MSP_NAME",
	MSPSetName:           "MSP_SET_NAME",
	MSPReboot:            "MSP_REBOOT",
	MSPDataflashSummary:  "MSP_DATAFLASH_SUMMARY",
	MSPDataflashRead:     "MSP_DATAFLASH_READ",
	MSPDataflashErase:    "MSP_DATAFLASH_ERASE",
	MSPSDCardSummary:     "MSP_SDCARD_SUMMARY",
	MSPBlackboxConfig:    "MSP_BLACKBOX_CONFIG",
	MSPSetBlackboxConfig: "MSP_SET_BLACKBOX_CONFIG",
	MSPStatus:            "MSP_STATUS",
	MSPAnalog:            "MSP_ANALOG",
	MSPUID:               "MSP_UID",
	MSPEEPROMWrite:       "MSP_EEPROM_WRITE",
	MSP2CommonTZ:         "MSP2_COMMON_TZ",
	MSP2CommonSetTZ:      "MSP2_COMMON_SET_TZ",
}

var messageIDs = func() map[string]uint16 {
	ids := make(map[string]uint16, len(messageNames))
	for id, name := range messageNames {
		ids[name] = id
	}
	return ids
}()

// MessageName returns the catalogue name of id.
func MessageName(id uint16) string {
	if name, ok := messageNames[id]; ok {
		return name
	}
	if id >= msp2FirstExtendedOnly {
		return fmt.Sprintf("MSP2_0x%04X", id)
	}
	return fmt.Sprintf("MSP_%d", id)
}

// LookupMessageID resolves a catalogue name such as "MSP_BLACKBOX_CONFIG".
func LookupMessageID(name string) (uint16, bool) {
	id, ok := messageIDs[name]
	return id, ok
}
