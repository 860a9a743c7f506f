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

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
)

// APIVersion is the MSP_API_VERSION response.
type APIVersion struct {
	Protocol uint8
	Major    uint8
	Minor    uint8
}

func (v APIVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Properties exposes the fields as config properties.
func (v APIVersion) Properties() map[string]any {
	return map[string]any{
		"protocol_version": v.Protocol,
		"api_version":      v.String(),
	}
}

// FCVariant is the MSP_FC_VARIANT response, a four letter firmware id such as "BTFL".
type FCVariant struct {
	Identifier string
}

// Properties exposes the fields as config properties.
func (v FCVariant) Properties() map[string]any {
	return map[string]any{"fc_variant": v.Identifier}
}

// FCVersion is the MSP_FC_VERSION response.
type FCVersion struct {
	Major uint8
	Minor uint8
	Patch uint8
}

func (v FCVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Properties exposes the fields as config properties.
func (v FCVersion) Properties() map[string]any {
	return map[string]any{"fc_version": v.String()}
}

// BoardInfo is the MSP_BOARD_INFO response.
type BoardInfo struct {
	Identifier       string
	HardwareRevision uint16
}

// Properties exposes the fields as config properties.
func (b BoardInfo) Properties() map[string]any {
	return map[string]any{
		"board_identifier":  b.Identifier,
		"hardware_revision": b.HardwareRevision,
	}
}

// BuildInfo is the MSP_BUILD_INFO response.
type BuildInfo struct {
	Date     string
	Time     string
	Revision string
}

// Properties exposes the fields as config properties.
func (b BuildInfo) Properties() map[string]any {
	return map[string]any{
		"build_date":     b.Date,
		"build_time":     b.Time,
		"build_revision": b.Revision,
	}
}

// CraftName is the MSP_NAME response and the MSP_SET_NAME request.
type CraftName struct {
	Name string
}

// Properties exposes the fields as config properties.
func (c CraftName) Properties() map[string]any {
	return map[string]any{"name": c.Name}
}

// Status is the MSP_STATUS response.
type Status struct {
	FlightModes uint32
	CycleTime   uint16
	I2CErrors   uint16
	Sensors     uint16
	Profile     uint8
}

// Properties exposes the fields as config properties.
func (s Status) Properties() map[string]any {
	return map[string]any{
		"cycle_time":   s.CycleTime,
		"i2c_errors":   s.I2CErrors,
		"sensors":      s.Sensors,
		"flight_modes": s.FlightModes,
		"profile":      s.Profile,
	}
}

// Analog is the MSP_ANALOG response.
type Analog struct {
	Voltage  float64 // volts
	Amperage float64 // amps
	MAhDrawn uint16
	RSSI     uint16
}

// Properties exposes the fields as config properties.
func (a Analog) Properties() map[string]any {
	return map[string]any{
		"voltage":   a.Voltage,
		"amperage":  a.Amperage,
		"mah_drawn": a.MAhDrawn,
		"rssi":      a.RSSI,
	}
}

// BlackboxConfig is the MSP_BLACKBOX_CONFIG response and the
// MSP_SET_BLACKBOX_CONFIG request. Older firmware only sends the first
// three fields; Fields records how many were present.
type BlackboxConfig struct {
	PDenom     uint16
	Device     uint8
	RateNum    uint8
	RateDenom  uint8
	SampleRate uint8
	Fields     int
	Supported  bool
}

// Blackbox devices
const (
	BlackboxDeviceNone   uint8 = 0
	BlackboxDeviceFlash  uint8 = 1
	BlackboxDeviceSDCard uint8 = 2
	BlackboxDeviceSerial uint8 = 3
)

// Properties exposes the fields as config properties. Fields the firmware did
// not send are left out.
func (b BlackboxConfig) Properties() map[string]any {
	props := map[string]any{
		"supported": b.Supported,
		"device":    b.Device,
		"rate_num":  b.RateNum,
	}
	if b.Fields >= 4 {
		props["rate_denom"] = b.RateDenom
	}
	if b.Fields >= 6 {
		props["p_denom"] = b.PDenom
	}
	if b.Fields >= 7 {
		props["sample_rate"] = b.SampleRate
	}
	return props
}

// DataflashSummary is the MSP_DATAFLASH_SUMMARY response.
type DataflashSummary struct {
	Sectors   uint32
	TotalSize uint32
	UsedSize  uint32
	Ready     bool
	Supported bool
}

// Properties exposes the fields as config properties.
func (d DataflashSummary) Properties() map[string]any {
	return map[string]any{
		"ready":      d.Ready,
		"supported":  d.Supported,
		"sectors":    d.Sectors,
		"total_size": d.TotalSize,
		"used_size":  d.UsedSize,
	}
}

// DataflashReadRequest is the MSP_DATAFLASH_READ request.
type DataflashReadRequest struct {
	Address uint32
	Size    uint16
}

// DataflashChunk is the MSP_DATAFLASH_READ response.
type DataflashChunk struct {
	Data    []byte
	Address uint32
}

// SDCardSummary is the MSP_SDCARD_SUMMARY response.
type SDCardSummary struct {
	FreeSizeKB  uint32
	TotalSizeKB uint32
	State       uint8
	LastError   uint8
	Supported   bool
}

// Properties exposes the fields as config properties.
func (s SDCardSummary) Properties() map[string]any {
	return map[string]any{
		"supported":     s.Supported,
		"state":         s.State,
		"last_error":    s.LastError,
		"free_size_kb":  s.FreeSizeKB,
		"total_size_kb": s.TotalSizeKB,
	}
}

// UID is the MSP_UID response, the 96-bit MCU unique id.
type UID [12]byte

func (u UID) String() string {
	return hex.EncodeToString(u[:])
}

// Properties exposes the fields as config properties.
func (u UID) Properties() map[string]any {
	return map[string]any{"uid": u.String()}
}

// TimeZone is the MSP2_COMMON_TZ response and MSP2_COMMON_SET_TZ request.
type TimeZone struct {
	OffsetMinutes int16
	AutoDST       bool
	HasAutoDST    bool
}

// Properties exposes the fields as config properties.
func (tz TimeZone) Properties() map[string]any {
	props := map[string]any{"tz_offset": tz.OffsetMinutes}
	if tz.HasAutoDST {
		props["tz_auto_dst"] = tz.AutoDST
	}
	return props
}

// RegisterDefaults adds the built-in message catalogue to t.
func RegisterDefaults(t *Table) error {
	entries := map[uint16]Entry{
		MSPAPIVersion:        {MinLen: 3, MaxLen: 3, Decode: decodeAPIVersion},
		MSPFCVariant:         {MinLen: 4, MaxLen: 4, Decode: decodeFCVariant},
		MSPFCVersion:         {MinLen: 3, MaxLen: Unbounded, Decode: decodeFCVersion},
		MSPBoardInfo:         {MinLen: 6, MaxLen: Unbounded, Decode: decodeBoardInfo},
		MSPBuildInfo:         {MinLen: 26, MaxLen: Unbounded, Decode: decodeBuildInfo},
		MSPName:              {MinLen: 0, MaxLen: 32, Decode: decodeCraftName},
		MSPSetName:           {Encode: encodeCraftName},
		MSPReboot:            {MaxLen: Unbounded},
		MSPDataflashSummary:  {MinLen: 13, MaxLen: 13, Decode: decodeDataflashSummary},
		MSPDataflashRead:     {MinLen: 4, MaxLen: Unbounded, Decode: decodeDataflashChunk, Encode: encodeDataflashRead},
		MSPDataflashErase:    {},
		MSPSDCardSummary:     {MinLen: 11, MaxLen: 11, Decode: decodeSDCardSummary},
		MSPBlackboxConfig:    {MinLen: 3, MaxLen: 7, Decode: decodeBlackboxConfig},
		MSPSetBlackboxConfig: {Encode: encodeBlackboxConfig},
		MSPStatus:            {MinLen: 11, MaxLen: Unbounded, Decode: decodeStatus},
		MSPAnalog:            {MinLen: 7, MaxLen: Unbounded, Decode: decodeAnalog},
		MSPUID:               {MinLen: 12, MaxLen: 12, Decode: decodeUID},
		MSPEEPROMWrite:       {},
		MSP2CommonTZ:         {MinLen: 2, MaxLen: 3, Decode: decodeTimeZone},
		MSP2CommonSetTZ:      {Encode: encodeTimeZone},
	}

	for id, entry := range entries {
		entry.Name = messageNames[id]
		if err := t.Register(id, entry); err != nil {
			return err
		}
	}
	return nil
}

// DefaultTable returns a table holding the built-in message catalogue.
func DefaultTable() *Table {
	t := NewTable()
	if err := RegisterDefaults(t); err != nil {
		// The catalogue is static; a failure here is a programming error.
		panic(err)
	}
	return t
}

func decodeAPIVersion(p []byte) (any, error) {
	return APIVersion{Protocol: p[0], Major: p[1], Minor: p[2]}, nil
}

func decodeFCVariant(p []byte) (any, error) {
	return FCVariant{Identifier: string(p[:4])}, nil
}

func decodeFCVersion(p []byte) (any, error) {
	return FCVersion{Major: p[0], Minor: p[1], Patch: p[2]}, nil
}

func decodeBoardInfo(p []byte) (any, error) {
	return BoardInfo{
		Identifier:       string(p[:4]),
		HardwareRevision: binary.LittleEndian.Uint16(p[4:6]),
	}, nil
}

func decodeBuildInfo(p []byte) (any, error) {
	return BuildInfo{
		Date:     string(p[0:11]),
		Time:     string(p[11:19]),
		Revision: string(p[19:26]),
	}, nil
}

func decodeCraftName(p []byte) (any, error) {
	return CraftName{Name: strings.TrimRight(string(p), "\x00")}, nil
}

func encodeCraftName(v any) ([]byte, error) {
	var name string
	switch c := v.(type) {
	case CraftName:
		name = c.Name
	case *CraftName:
		name = c.Name
	case string:
		name = c
	case map[string]any:
		s, ok := c["name"].(string)
		if !ok {
			return nil, fmt.Errorf("%w: property name must be a string", ErrInvalidParameter)
		}
		name = s
	default:
		return nil, fmt.Errorf("%w: cannot encode %T as craft name", ErrInvalidParameter, v)
	}
	if len(name) > 32 {
		return nil, fmt.Errorf("%w: craft name longer than 32 bytes", ErrInvalidParameter)
	}
	return []byte(name), nil
}

func decodeStatus(p []byte) (any, error) {
	return Status{
		CycleTime:   binary.LittleEndian.Uint16(p[0:2]),
		I2CErrors:   binary.LittleEndian.Uint16(p[2:4]),
		Sensors:     binary.LittleEndian.Uint16(p[4:6]),
		FlightModes: binary.LittleEndian.Uint32(p[6:10]),
		Profile:     p[10],
	}, nil
}

func decodeAnalog(p []byte) (any, error) {
	return Analog{
		Voltage:  float64(p[0]) / 10,
		MAhDrawn: binary.LittleEndian.Uint16(p[1:3]),
		RSSI:     binary.LittleEndian.Uint16(p[3:5]),
		Amperage: float64(int16(binary.LittleEndian.Uint16(p[5:7]))) / 100,
	}, nil
}

func decodeBlackboxConfig(p []byte) (any, error) {
	cfg := BlackboxConfig{
		Supported: p[0]&0x01 != 0,
		Device:    p[1],
		RateNum:   p[2],
		Fields:    3,
	}
	switch len(p) {
	case 3:
	case 4:
		cfg.RateDenom = p[3]
		cfg.Fields = 4
	case 6:
		cfg.RateDenom = p[3]
		cfg.PDenom = binary.LittleEndian.Uint16(p[4:6])
		cfg.Fields = 6
	case 7:
		cfg.RateDenom = p[3]
		cfg.PDenom = binary.LittleEndian.Uint16(p[4:6])
		cfg.SampleRate = p[6]
		cfg.Fields = 7
	default:
		return nil, NewMalformedPayloadError(MSPBlackboxConfig, len(p), "p_denom needs two bytes")
	}
	return cfg, nil
}

func encodeBlackboxConfig(v any) ([]byte, error) {
	var cfg BlackboxConfig
	switch c := v.(type) {
	case BlackboxConfig:
		cfg = c
	case *BlackboxConfig:
		cfg = *c
	case map[string]any:
		var err error
		if cfg, err = blackboxConfigFromProperties(c); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: cannot encode %T as blackbox config", ErrInvalidParameter, v)
	}

	payload := make([]byte, 6)
	payload[0] = cfg.Device
	payload[1] = cfg.RateNum
	payload[2] = cfg.RateDenom
	binary.LittleEndian.PutUint16(payload[3:5], cfg.PDenom)
	payload[5] = cfg.SampleRate
	return payload, nil
}

func blackboxConfigFromProperties(props map[string]any) (BlackboxConfig, error) {
	var cfg BlackboxConfig
	var err error
	if cfg.Device, err = propUint8(props, "device", 0); err != nil {
		return cfg, err
	}
	if cfg.RateNum, err = propUint8(props, "rate_num", 1); err != nil {
		return cfg, err
	}
	if cfg.RateDenom, err = propUint8(props, "rate_denom", 1); err != nil {
		return cfg, err
	}
	if cfg.PDenom, err = propUint16(props, "p_denom", 32); err != nil {
		return cfg, err
	}
	if cfg.SampleRate, err = propUint8(props, "sample_rate", 0); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func decodeDataflashSummary(p []byte) (any, error) {
	return DataflashSummary{
		Ready:     p[0]&0x01 != 0,
		Supported: p[0]&0x02 != 0,
		Sectors:   binary.LittleEndian.Uint32(p[1:5]),
		TotalSize: binary.LittleEndian.Uint32(p[5:9]),
		UsedSize:  binary.LittleEndian.Uint32(p[9:13]),
	}, nil
}

func decodeDataflashChunk(p []byte) (any, error) {
	data := make([]byte, len(p)-4)
	copy(data, p[4:])
	return DataflashChunk{
		Address: binary.LittleEndian.Uint32(p[0:4]),
		Data:    data,
	}, nil
}

func encodeDataflashRead(v any) ([]byte, error) {
	var req DataflashReadRequest
	switch r := v.(type) {
	case DataflashReadRequest:
		req = r
	case *DataflashReadRequest:
		req = *r
	default:
		return nil, fmt.Errorf("%w: cannot encode %T as dataflash read", ErrInvalidParameter, v)
	}
	payload := make([]byte, 6)
	binary.LittleEndian.PutUint32(payload[0:4], req.Address)
	binary.LittleEndian.PutUint16(payload[4:6], req.Size)
	return payload, nil
}

func decodeSDCardSummary(p []byte) (any, error) {
	return SDCardSummary{
		Supported:   p[0]&0x01 != 0,
		State:       p[1],
		LastError:   p[2],
		FreeSizeKB:  binary.LittleEndian.Uint32(p[3:7]),
		TotalSizeKB: binary.LittleEndian.Uint32(p[7:11]),
	}, nil
}

func decodeUID(p []byte) (any, error) {
	var uid UID
	copy(uid[:], p)
	return uid, nil
}

func decodeTimeZone(p []byte) (any, error) {
	tz := TimeZone{OffsetMinutes: int16(binary.LittleEndian.Uint16(p[0:2]))}
	if len(p) == 3 {
		tz.HasAutoDST = true
		tz.AutoDST = p[2] != 0
	}
	return tz, nil
}

func encodeTimeZone(v any) ([]byte, error) {
	var tz TimeZone
	switch z := v.(type) {
	case TimeZone:
		tz = z
	case *TimeZone:
		tz = *z
	case map[string]any:
		n, err := propInt(z, "tz_offset", math.MinInt16, math.MaxInt16)
		if err != nil {
			return nil, err
		}
		tz.OffsetMinutes = int16(n)
		if dst, ok := z["tz_auto_dst"].(bool); ok {
			tz.HasAutoDST = true
			tz.AutoDST = dst
		}
	default:
		return nil, fmt.Errorf("%w: cannot encode %T as time zone", ErrInvalidParameter, v)
	}

	payload := make([]byte, 2, 3)
	binary.LittleEndian.PutUint16(payload, uint16(tz.OffsetMinutes))
	if tz.HasAutoDST {
		dst := byte(0)
		if tz.AutoDST {
			dst = 1
		}
		payload = append(payload, dst)
	}
	return payload, nil
}
