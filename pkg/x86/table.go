// Copyright (C) 2021  Antonio Lassandro

// This program is free software: you can redistribute it and/or modify it
// under the terms of the GNU General Public License as published by the Free
// Software Foundation, either version 3 of the License, or (at your option)
// any later version.

// This program is distributed in the hope that it will be useful, but WITHOUT
// ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
// FITNESS FOR A PARTICULAR PURPOSE.  See the GNU General Public License for
// more details.

// You should have received a copy of the GNU General Public License along
// with this program.  If not, see <http://www.gnu.org/licenses/>.

package x86

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	REX   uint8 = 0x40
	REX_W uint8 = 0x08
	REX_R uint8 = 0x04
	REX_X uint8 = 0x02
	REX_B uint8 = 0x01
)

// VEX payload layout: W in bit 7, L in bit 2, the implied SIMD prefix in the
// low two bits and the opcode map in the high byte.
const (
	VEX_PP_66  uint16 = 0x1
	VEX_PP_F3  uint16 = 0x2
	VEX_PP_F2  uint16 = 0x3
	VEX_L      uint16 = 0x4
	VEX_W      uint16 = 0x80
	VEX_MAP_0F uint16 = 0x100

	VEX_MAP_0F38 uint16 = 0x200
	VEX_MAP_0F3A uint16 = 0x300
)

type Flags uint8

const (
	FLAG_MODRM_REG_AND_RM Flags = 1 << iota
	FLAG_ADD_REG_TO_OPCODE
	FLAG_REX
	FLAG_2VEX
	FLAG_3VEX
	FLAG_OP4_IS_REG
)

type Mnemonic uint16

type Variant struct {
	Mnemonic Mnemonic
	// Opcode bytes, optionally led by a mandatory 66/F2/F3 prefix and the 0F
	// escape. VEX variants carry neither; both live in the VEX payload.
	Opcode []byte
	// ModRM reg field extension, or -1
	Digit int8
	// Operand slots, OPERAND_NONE terminated
	Operands [4]OperandType
	// Size in bytes of the immediate or relative field, or -1
	Immediate int8
	Flags     Flags
	// Static REX requirement: 0, REX or REX|REX_W
	REX uint8
	VEX uint16
}

func (v *Variant) NumOperands() int {
	count := 0

	for _, operand := range v.Operands {
		if operand == OPERAND_NONE {
			break
		}

		count++
	}

	return count
}

func (v *Variant) IsVEX() bool {
	return v.Flags&(FLAG_2VEX|FLAG_3VEX) != 0
}

// MandatoryPrefix splits a leading 66, F2 or F3 byte off the opcode.
func (v *Variant) MandatoryPrefix() (byte, []byte) {
	if len(v.Opcode) > 1 {
		switch v.Opcode[0] {
		case 0x66, 0xF2, 0xF3:
			return v.Opcode[0], v.Opcode[1:]
		}
	}

	return 0, v.Opcode
}

// Escaped reports whether the opcode lives in the two byte (0F) map.
func (v *Variant) Escaped() bool {
	if v.IsVEX() {
		return true
	}

	_, opcode := v.MandatoryPrefix()
	return len(opcode) > 1 && opcode[0] == 0x0F
}

// OperationSize returns the width of the first general purpose data slot,
// or 0 if the variant has none. Port and count registers do not count.
func (v *Variant) OperationSize() int {
	for _, operand := range v.Operands {
		if operand.IsGeneral() {
			return operand.Bits()
		}
	}

	return 0
}

func (v *Variant) String() string {
	operands := make([]string, 0, len(v.Operands))

	for _, operand := range v.Operands[:v.NumOperands()] {
		operands = append(operands, operand.String())
	}

	if len(operands) == 0 {
		return v.Mnemonic.String()
	}

	return v.Mnemonic.String() + " " + strings.Join(operands, ", ")
}

var mnemonicNames []string
var mnemonicIndex = make(map[string]Mnemonic)
var variants [][]Variant

func (m Mnemonic) String() string {
	if int(m) < len(mnemonicNames) {
		return mnemonicNames[m]
	}

	return "<invalid>"
}

// Variants returns the encodings of the mnemonic in match order.
func (m Mnemonic) Variants() []Variant {
	if int(m) < len(variants) {
		return variants[m]
	}

	return nil
}

// Lookup finds a mnemonic by name, ignoring case.
func Lookup(name string) (Mnemonic, bool) {
	mnemonic, ok := mnemonicIndex[strings.ToUpper(name)]
	return mnemonic, ok
}

// Mnemonics lists every mnemonic in table order.
func Mnemonics() []string {
	names := make([]string, len(mnemonicNames))
	copy(names, mnemonicNames)
	return names
}

func parseOpcode(variant *Variant, text string) error {
	fields := strings.Fields(text)

	for _, field := range fields {
		switch {
		case field == "+" || field == "NP":
			continue
		case field == "REX":
			variant.REX = REX
			variant.Flags |= FLAG_REX
		case field == "REX.W":
			variant.REX = REX | REX_W
			variant.Flags |= FLAG_REX
		case strings.HasPrefix(field, "VEX."):
			if err := parseVEX(variant, field); err != nil {
				return err
			}
		case field == "/r":
			variant.Flags |= FLAG_MODRM_REG_AND_RM
		case field == "/is4":
			variant.Flags |= FLAG_OP4_IS_REG
			variant.Immediate = 1
		case len(field) == 2 && field[0] == '/':
			digit, err := strconv.ParseUint(field[1:], 8, 3)
			if err != nil {
				return fmt.Errorf("bad digit %q", field)
			}
			variant.Digit = int8(digit)
		case field == "ib" || field == "cb":
			variant.Immediate = 1
		case field == "iw" || field == "cw":
			variant.Immediate = 2
		case field == "id" || field == "cd":
			variant.Immediate = 4
		case field == "io":
			variant.Immediate = 8
		default:
			opcode := field

			if i := strings.IndexByte(field, '+'); i > 0 {
				switch field[i+1:] {
				case "rb", "rw", "rd", "ro", "i":
				default:
					return fmt.Errorf("bad register suffix %q", field)
				}

				opcode = field[:i]
				variant.Flags |= FLAG_ADD_REG_TO_OPCODE
			}

			value, err := strconv.ParseUint(opcode, 16, 8)
			if err != nil || len(opcode) != 2 {
				return fmt.Errorf("bad opcode byte %q", field)
			}

			variant.Opcode = append(variant.Opcode, byte(value))
		}
	}

	if len(variant.Opcode) == 0 {
		return fmt.Errorf("no opcode bytes in %q", text)
	}

	return nil
}

// parseVEX reads the VEX.L.pp.mmmmm.W notation of the Intel manual.
func parseVEX(variant *Variant, field string) error {
	parts := strings.Split(field, ".")[1:]

	if len(parts) < 3 {
		return fmt.Errorf("bad VEX prefix %q", field)
	}

	switch parts[0] {
	case "128", "LZ", "L0", "LIG":
	case "256", "L1":
		variant.VEX |= VEX_L
	default:
		return fmt.Errorf("bad VEX length in %q", field)
	}

	parts = parts[1:]

	switch parts[0] {
	case "66":
		variant.VEX |= VEX_PP_66
		parts = parts[1:]
	case "F3":
		variant.VEX |= VEX_PP_F3
		parts = parts[1:]
	case "F2":
		variant.VEX |= VEX_PP_F2
		parts = parts[1:]
	}

	if len(parts) != 2 {
		return fmt.Errorf("bad VEX prefix %q", field)
	}

	twoByte := true

	switch parts[0] {
	case "0F":
		variant.VEX |= VEX_MAP_0F
	case "0F38":
		variant.VEX |= VEX_MAP_0F38
		twoByte = false
	case "0F3A":
		variant.VEX |= VEX_MAP_0F3A
		twoByte = false
	default:
		return fmt.Errorf("bad VEX map in %q", field)
	}

	switch parts[1] {
	case "W0", "WIG":
	case "W1":
		variant.VEX |= VEX_W
		twoByte = false
	default:
		return fmt.Errorf("bad VEX.W in %q", field)
	}

	if twoByte {
		variant.Flags |= FLAG_2VEX
	} else {
		variant.Flags |= FLAG_3VEX
	}

	return nil
}

func parseOperands(variant *Variant, text string) error {
	text = strings.TrimSpace(text)

	if text == "" {
		return nil
	}

	names := strings.Split(text, ",")

	if len(names) > len(variant.Operands) {
		return fmt.Errorf("too many operands in %q", text)
	}

	for i, name := range names {
		operand, ok := operandsByName[strings.TrimSpace(name)]
		if !ok || operand == OPERAND_NONE || operand == OPERAND_MEM_ANY ||
			operand == OPERAND_LABEL {
			return fmt.Errorf("bad operand %q", name)
		}

		variant.Operands[i] = operand
	}

	return nil
}

// parseVariant reads a table line of the form "MNEMONIC | opcode | operands".
// The returned variant has no mnemonic index assigned yet.
func parseVariant(line string) (string, Variant, error) {
	fields := strings.Split(line, "|")

	if len(fields) != 3 {
		return "", Variant{}, fmt.Errorf("malformed table line %q", line)
	}

	name := strings.ToUpper(strings.TrimSpace(fields[0]))
	variant := Variant{Digit: -1, Immediate: -1}

	if err := parseOpcode(&variant, fields[1]); err != nil {
		return "", Variant{}, fmt.Errorf("%s: %w", name, err)
	}

	if err := parseOperands(&variant, fields[2]); err != nil {
		return "", Variant{}, fmt.Errorf("%s: %w", name, err)
	}

	if variant.Flags&FLAG_OP4_IS_REG != 0 && variant.NumOperands() != 4 {
		return "", Variant{}, fmt.Errorf("%s: /is4 needs four operands", name)
	}

	return name, variant, nil
}

func addVariant(name string, variant Variant) {
	mnemonic, ok := mnemonicIndex[name]
	if !ok {
		mnemonic = Mnemonic(len(mnemonicNames))
		mnemonicNames = append(mnemonicNames, name)
		mnemonicIndex[name] = mnemonic
		variants = append(variants, nil)
	}

	variant.Mnemonic = mnemonic
	variants[mnemonic] = append(variants[mnemonic], variant)
}

func init() {
	lines := strings.Split(instructionTable, "\n")
	lines = append(lines, generatedLines()...)

	for _, line := range lines {
		line = strings.TrimSpace(line)

		if line == "" || line[0] == '#' {
			continue
		}

		name, variant, err := parseVariant(line)
		if err != nil {
			panic(err)
		}

		addVariant(name, variant)
	}
}
