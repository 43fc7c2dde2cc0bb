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
	"strings"
)

// Variants of a mnemonic are tried in the order they appear here, so the
// short forms (imm8, accumulator, register-in-opcode) come first.
const instructionTable = `
MOV  | 88 /r               | r/m8, r8
MOV  | 89 /r               | r/m16, r16
MOV  | 89 /r               | r/m32, r32
MOV  | REX.W + 89 /r       | r/m64, r64
MOV  | 8A /r               | r8, r/m8
MOV  | 8B /r               | r16, r/m16
MOV  | 8B /r               | r32, r/m32
MOV  | REX.W + 8B /r       | r64, r/m64
MOV  | B0+rb ib            | r8, imm8
MOV  | B8+rw iw            | r16, imm16
MOV  | B8+rd id            | r32, imm32
MOV  | C6 /0 ib            | r/m8, imm8
MOV  | C7 /0 iw            | r/m16, imm16
MOV  | C7 /0 id            | r/m32, imm32
MOV  | REX.W + C7 /0 id    | r/m64, imm32
MOV  | REX.W + B8+ro io    | r64, imm64

MOVZX  | 0F B6 /r          | r16, r/m8
MOVZX  | 0F B6 /r          | r32, r/m8
MOVZX  | REX.W + 0F B6 /r  | r64, r/m8
MOVZX  | 0F B7 /r          | r32, r/m16
MOVZX  | REX.W + 0F B7 /r  | r64, r/m16
MOVSX  | 0F BE /r          | r16, r/m8
MOVSX  | 0F BE /r          | r32, r/m8
MOVSX  | REX.W + 0F BE /r  | r64, r/m8
MOVSX  | 0F BF /r          | r32, r/m16
MOVSX  | REX.W + 0F BF /r  | r64, r/m16
MOVSXD | REX.W + 63 /r     | r64, r/m32

LEA  | 8D /r               | r16, m
LEA  | 8D /r               | r32, m
LEA  | REX.W + 8D /r       | r64, m

XCHG | 90+rw               | AX, r16
XCHG | 90+rw               | r16, AX
XCHG | 90+rd               | EAX, r32
XCHG | 90+rd               | r32, EAX
XCHG | REX.W + 90+ro       | RAX, r64
XCHG | REX.W + 90+ro       | r64, RAX
XCHG | 86 /r               | r/m8, r8
XCHG | 86 /r               | r8, r/m8
XCHG | 87 /r               | r/m16, r16
XCHG | 87 /r               | r16, r/m16
XCHG | 87 /r               | r/m32, r32
XCHG | 87 /r               | r32, r/m32
XCHG | REX.W + 87 /r       | r/m64, r64
XCHG | REX.W + 87 /r       | r64, r/m64

PUSH | 50+ro               | r64
PUSH | 50+rw               | r16
PUSH | 6A ib               | imm8
PUSH | 68 id               | imm32
PUSH | FF /6               | r/m64
PUSH | FF /6               | r/m16
POP  | 58+ro               | r64
POP  | 58+rw               | r16
POP  | 8F /0               | r/m64
POP  | 8F /0               | r/m16

TEST | A8 ib               | AL, imm8
TEST | F6 /0 ib            | r/m8, imm8
TEST | A9 iw               | AX, imm16
TEST | A9 id               | EAX, imm32
TEST | REX.W + A9 id       | RAX, imm32
TEST | F7 /0 iw            | r/m16, imm16
TEST | F7 /0 id            | r/m32, imm32
TEST | REX.W + F7 /0 id    | r/m64, imm32
TEST | 84 /r               | r/m8, r8
TEST | 85 /r               | r/m16, r16
TEST | 85 /r               | r/m32, r32
TEST | REX.W + 85 /r       | r/m64, r64

IMUL | F6 /5               | r/m8
IMUL | F7 /5               | r/m16
IMUL | F7 /5               | r/m32
IMUL | REX.W + F7 /5       | r/m64
IMUL | 0F AF /r            | r16, r/m16
IMUL | 0F AF /r            | r32, r/m32
IMUL | REX.W + 0F AF /r    | r64, r/m64
IMUL | 6B /r ib            | r16, r/m16, imm8
IMUL | 6B /r ib            | r32, r/m32, imm8
IMUL | REX.W + 6B /r ib    | r64, r/m64, imm8
IMUL | 69 /r iw            | r16, r/m16, imm16
IMUL | 69 /r id            | r32, r/m32, imm32
IMUL | REX.W + 69 /r id    | r64, r/m64, imm32

CALL | E8 cd               | rel32
CALL | FF /2               | r/m64
JMP  | E9 cd               | rel32
JMP  | FF /4               | r/m64
RET  | C3                  |
RET  | C2 iw               | imm16

SYSCALL | 0F 05            |
NOP     | 90               |
HLT     | F4               |
INT3    | CC               |
INT     | CD ib            | imm8
LEAVE   | C9               |
CQO     | REX.W + 99       |
CDQ     | 99               |
CWD     | 66 99            |
CDQE    | REX.W + 98       |
UD2     | 0F 0B            |
CPUID   | 0F A2            |
RDTSC   | 0F 31            |

IN   | EC                  | AL, DX
IN   | ED                  | AX, DX
IN   | ED                  | EAX, DX
OUT  | EE                  | DX, AL
OUT  | EF                  | DX, AX
OUT  | EF                  | DX, EAX

# x87
FLD   | D9 /0              | m32
FLD   | DD /0              | m64
FLD   | DB /5              | m80
FLD   | D9 C0+i            | ST(i)
FST   | D9 /2              | m32
FST   | DD /2              | m64
FST   | DD D0+i            | ST(i)
FSTP  | D9 /3              | m32
FSTP  | DD /3              | m64
FSTP  | DB /7              | m80
FSTP  | DD D8+i            | ST(i)
FILD  | DF /0              | m16
FILD  | DB /0              | m32
FILD  | DF /5              | m64
FISTP | DF /3              | m16
FISTP | DB /3              | m32
FISTP | DF /7              | m64
FADD  | D8 /0              | m32
FADD  | DC /0              | m64
FADD  | D8 C0+i            | ST(0), ST(i)
FADD  | DC C0+i            | ST(i), ST(0)
FMUL  | D8 /1              | m32
FMUL  | DC /1              | m64
FMUL  | D8 C8+i            | ST(0), ST(i)
FMUL  | DC C8+i            | ST(i), ST(0)
FSUB  | D8 /4              | m32
FSUB  | DC /4              | m64
FSUB  | D8 E0+i            | ST(0), ST(i)
FSUB  | DC E8+i            | ST(i), ST(0)
FDIV  | D8 /6              | m32
FDIV  | DC /6              | m64
FDIV  | D8 F0+i            | ST(0), ST(i)
FDIV  | DC F8+i            | ST(i), ST(0)
FADDP | DE C0+i            | ST(i), ST(0)
FMULP | DE C8+i            | ST(i), ST(0)
FXCH  | D9 C8+i            | ST(i)
FLDZ  | D9 EE              |
FLD1  | D9 E8              |
FCHS  | D9 E0              |
FABS  | D9 E1              |
FSQRT | D9 FA              |
FNINIT | DB E3             |

# MMX and SSE
MOVQ   | NP 0F 6F /r            | mm, mm/m64
MOVQ   | NP 0F 7F /r            | mm/m64, mm
MOVQ   | 66 REX.W 0F 6E /r      | xmm, r/m64
MOVQ   | 66 REX.W 0F 7E /r      | r/m64, xmm
MOVQ   | F3 0F 7E /r            | xmm, xmm/m64
MOVQ   | 66 0F D6 /r            | xmm/m64, xmm
MOVD   | 66 0F 6E /r            | xmm, r/m32
MOVD   | 66 0F 7E /r            | r/m32, xmm
PADDD  | NP 0F FE /r            | mm, mm/m64
PADDD  | 66 0F FE /r            | xmm, xmm/m128
PXOR   | NP 0F EF /r            | mm, mm/m64
PXOR   | 66 0F EF /r            | xmm, xmm/m128
MOVAPS | NP 0F 28 /r            | xmm, xmm/m128
MOVAPS | NP 0F 29 /r            | xmm/m128, xmm
MOVUPS | NP 0F 10 /r            | xmm, xmm/m128
MOVUPS | NP 0F 11 /r            | xmm/m128, xmm
MOVDQA | 66 0F 6F /r            | xmm, xmm/m128
MOVDQA | 66 0F 7F /r            | xmm/m128, xmm
MOVDQU | F3 0F 6F /r            | xmm, xmm/m128
MOVDQU | F3 0F 7F /r            | xmm/m128, xmm
ADDPS  | NP 0F 58 /r            | xmm, xmm/m128
ADDPD  | 66 0F 58 /r            | xmm, xmm/m128
ADDSS  | F3 0F 58 /r            | xmm, xmm/m32
ADDSD  | F2 0F 58 /r            | xmm, xmm/m64
SUBPS  | NP 0F 5C /r            | xmm, xmm/m128
SUBPD  | 66 0F 5C /r            | xmm, xmm/m128
MULPS  | NP 0F 59 /r            | xmm, xmm/m128
MULPD  | 66 0F 59 /r            | xmm, xmm/m128
DIVPS  | NP 0F 5E /r            | xmm, xmm/m128
DIVPD  | 66 0F 5E /r            | xmm, xmm/m128
SQRTPS | NP 0F 51 /r            | xmm, xmm/m128
ANDPS  | NP 0F 54 /r            | xmm, xmm/m128
XORPS  | NP 0F 57 /r            | xmm, xmm/m128

# AVX, AVX2 and FMA
VMOVAPS     | VEX.128.0F.WIG 28 /r           | xmm, xmm/m128
VMOVAPS     | VEX.256.0F.WIG 28 /r           | ymm, ymm/m256
VMOVAPS     | VEX.128.0F.WIG 29 /r           | xmm/m128, xmm
VMOVAPS     | VEX.256.0F.WIG 29 /r           | ymm/m256, ymm
VMOVUPS     | VEX.128.0F.WIG 10 /r           | xmm, xmm/m128
VMOVUPS     | VEX.256.0F.WIG 10 /r           | ymm, ymm/m256
VMOVUPS     | VEX.128.0F.WIG 11 /r           | xmm/m128, xmm
VMOVUPS     | VEX.256.0F.WIG 11 /r           | ymm/m256, ymm
VMOVDQU     | VEX.128.F3.0F.WIG 6F /r        | xmm, xmm/m128
VMOVDQU     | VEX.256.F3.0F.WIG 6F /r        | ymm, ymm/m256
VMOVDQU     | VEX.128.F3.0F.WIG 7F /r        | xmm/m128, xmm
VMOVDQU     | VEX.256.F3.0F.WIG 7F /r        | ymm/m256, ymm
VADDPS      | VEX.128.0F.WIG 58 /r           | xmm, xmm, xmm/m128
VADDPS      | VEX.256.0F.WIG 58 /r           | ymm, ymm, ymm/m256
VADDPD      | VEX.128.66.0F.WIG 58 /r        | xmm, xmm, xmm/m128
VADDPD      | VEX.256.66.0F.WIG 58 /r        | ymm, ymm, ymm/m256
VSUBPS      | VEX.128.0F.WIG 5C /r           | xmm, xmm, xmm/m128
VSUBPS      | VEX.256.0F.WIG 5C /r           | ymm, ymm, ymm/m256
VMULPS      | VEX.128.0F.WIG 59 /r           | xmm, xmm, xmm/m128
VMULPS      | VEX.256.0F.WIG 59 /r           | ymm, ymm, ymm/m256
VDIVPS      | VEX.128.0F.WIG 5E /r           | xmm, xmm, xmm/m128
VDIVPS      | VEX.256.0F.WIG 5E /r           | ymm, ymm, ymm/m256
VXORPS      | VEX.128.0F.WIG 57 /r           | xmm, xmm, xmm/m128
VXORPS      | VEX.256.0F.WIG 57 /r           | ymm, ymm, ymm/m256
VPXOR       | VEX.128.66.0F.WIG EF /r        | xmm, xmm, xmm/m128
VPXOR       | VEX.256.66.0F.WIG EF /r        | ymm, ymm, ymm/m256
VPADDD      | VEX.128.66.0F.WIG FE /r        | xmm, xmm, xmm/m128
VPADDD      | VEX.256.66.0F.WIG FE /r        | ymm, ymm, ymm/m256
VSQRTPS     | VEX.128.0F.WIG 51 /r           | xmm, xmm/m128
VSQRTPS     | VEX.256.0F.WIG 51 /r           | ymm, ymm/m256
VPSRLD      | VEX.128.66.0F.WIG 72 /2 ib     | xmm, xmm, imm8
VPSRLD      | VEX.256.66.0F.WIG 72 /2 ib     | ymm, ymm, imm8
VBLENDVPS   | VEX.128.66.0F3A.W0 4A /r /is4  | xmm, xmm, xmm/m128, xmm
VBLENDVPS   | VEX.256.66.0F3A.W0 4A /r /is4  | ymm, ymm, ymm/m256, ymm
VPERMQ      | VEX.256.66.0F3A.W1 00 /r ib    | ymm, ymm/m256, imm8
VFMADD231PS | VEX.128.66.0F38.W0 B8 /r       | xmm, xmm, xmm/m128
VFMADD231PS | VEX.256.66.0F38.W0 B8 /r       | ymm, ymm, ymm/m256
VZEROUPPER  | VEX.128.0F.WIG 77              |

# BMI
ANDN  | VEX.LZ.0F38.W0 F2 /r               | r32, r32, r/m32
ANDN  | VEX.LZ.0F38.W1 F2 /r               | r64, r64, r/m64
BEXTR | VEX.LZ.0F38.W0 F7 /r               | r32, r/m32, r32
BEXTR | VEX.LZ.0F38.W1 F7 /r               | r64, r/m64, r64
SHLX  | VEX.LZ.66.0F38.W0 F7 /r            | r32, r/m32, r32
SHLX  | VEX.LZ.66.0F38.W1 F7 /r            | r64, r/m64, r64
`

var arithmetic = []string{"ADD", "OR", "ADC", "SBB", "AND", "SUB", "XOR", "CMP"}

var shifts = map[string]int{
	"ROL": 0, "ROR": 1, "RCL": 2, "RCR": 3, "SHL": 4, "SAL": 4, "SHR": 5,
	"SAR": 7,
}

var shiftOrder = []string{"ROL", "ROR", "RCL", "RCR", "SHL", "SAL", "SHR", "SAR"}

var unary = []struct {
	name  string
	byte8 string
	byteN string
	digit int
}{
	{"INC", "FE", "FF", 0},
	{"DEC", "FE", "FF", 1},
	{"NOT", "F6", "F7", 2},
	{"NEG", "F6", "F7", 3},
	{"MUL", "F6", "F7", 4},
	{"DIV", "F6", "F7", 6},
	{"IDIV", "F6", "F7", 7},
}

// Condition code suffixes and their tttn encoding.
var conditions = []struct {
	suffix string
	code   int
}{
	{"O", 0x0}, {"NO", 0x1}, {"B", 0x2}, {"C", 0x2}, {"NAE", 0x2},
	{"AE", 0x3}, {"NB", 0x3}, {"NC", 0x3}, {"E", 0x4}, {"Z", 0x4},
	{"NE", 0x5}, {"NZ", 0x5}, {"BE", 0x6}, {"NA", 0x6}, {"A", 0x7},
	{"NBE", 0x7}, {"S", 0x8}, {"NS", 0x9}, {"P", 0xA}, {"PE", 0xA},
	{"NP", 0xB}, {"PO", 0xB}, {"L", 0xC}, {"NGE", 0xC}, {"GE", 0xD},
	{"NL", 0xD}, {"LE", 0xE}, {"NG", 0xE}, {"G", 0xF}, {"NLE", 0xF},
}

// ShiftMnemonic reports whether the mnemonic is a shift or rotate, whose
// count operand is sized independently of the destination.
func ShiftMnemonic(name string) bool {
	_, ok := shifts[strings.ToUpper(name)]
	return ok
}

// generatedLines expands the regular instruction families into table lines.
func generatedLines() []string {
	var lines []string

	for digit, name := range arithmetic {
		base := digit * 8

		lines = append(lines,
			fmt.Sprintf("%s | %02X ib | AL, imm8", name, base+4),
			fmt.Sprintf("%s | 80 /%d ib | r/m8, imm8", name, digit),
			fmt.Sprintf("%s | 83 /%d ib | r/m16, imm8", name, digit),
			fmt.Sprintf("%s | 83 /%d ib | r/m32, imm8", name, digit),
			fmt.Sprintf("%s | REX.W + 83 /%d ib | r/m64, imm8", name, digit),
			fmt.Sprintf("%s | %02X iw | AX, imm16", name, base+5),
			fmt.Sprintf("%s | %02X id | EAX, imm32", name, base+5),
			fmt.Sprintf("%s | REX.W + %02X id | RAX, imm32", name, base+5),
			fmt.Sprintf("%s | 81 /%d iw | r/m16, imm16", name, digit),
			fmt.Sprintf("%s | 81 /%d id | r/m32, imm32", name, digit),
			fmt.Sprintf("%s | REX.W + 81 /%d id | r/m64, imm32", name, digit),
			fmt.Sprintf("%s | %02X /r | r/m8, r8", name, base),
			fmt.Sprintf("%s | %02X /r | r/m16, r16", name, base+1),
			fmt.Sprintf("%s | %02X /r | r/m32, r32", name, base+1),
			fmt.Sprintf("%s | REX.W + %02X /r | r/m64, r64", name, base+1),
			fmt.Sprintf("%s | %02X /r | r8, r/m8", name, base+2),
			fmt.Sprintf("%s | %02X /r | r16, r/m16", name, base+3),
			fmt.Sprintf("%s | %02X /r | r32, r/m32", name, base+3),
			fmt.Sprintf("%s | REX.W + %02X /r | r64, r/m64", name, base+3),
		)
	}

	for _, name := range shiftOrder {
		digit := shifts[name]

		lines = append(lines,
			fmt.Sprintf("%s | D2 /%d | r/m8, CL", name, digit),
			fmt.Sprintf("%s | D3 /%d | r/m16, CL", name, digit),
			fmt.Sprintf("%s | D3 /%d | r/m32, CL", name, digit),
			fmt.Sprintf("%s | REX.W + D3 /%d | r/m64, CL", name, digit),
			fmt.Sprintf("%s | C0 /%d ib | r/m8, imm8", name, digit),
			fmt.Sprintf("%s | C1 /%d ib | r/m16, imm8", name, digit),
			fmt.Sprintf("%s | C1 /%d ib | r/m32, imm8", name, digit),
			fmt.Sprintf("%s | REX.W + C1 /%d ib | r/m64, imm8", name, digit),
		)
	}

	for _, op := range unary {
		lines = append(lines,
			fmt.Sprintf("%s | %s /%d | r/m8", op.name, op.byte8, op.digit),
			fmt.Sprintf("%s | %s /%d | r/m16", op.name, op.byteN, op.digit),
			fmt.Sprintf("%s | %s /%d | r/m32", op.name, op.byteN, op.digit),
			fmt.Sprintf("%s | REX.W + %s /%d | r/m64", op.name, op.byteN, op.digit),
		)
	}

	for _, cc := range conditions {
		lines = append(lines,
			fmt.Sprintf("J%s | 0F %02X cd | rel32", cc.suffix, 0x80+cc.code),
			fmt.Sprintf("SET%s | 0F %02X /0 | r/m8", cc.suffix, 0x90+cc.code),
			fmt.Sprintf("CMOV%s | 0F %02X /r | r16, r/m16", cc.suffix, 0x40+cc.code),
			fmt.Sprintf("CMOV%s | 0F %02X /r | r32, r/m32", cc.suffix, 0x40+cc.code),
			fmt.Sprintf("CMOV%s | REX.W + 0F %02X /r | r64, r/m64", cc.suffix, 0x40+cc.code),
		)
	}

	return lines
}
