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

package assembler_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/arch/x86/x86asm"

	"github.com/lassandro/basm/pkg/assembler"
)

func enc(input string, output ...byte) testCase {
	return testCase{Input: input, Output: output}
}

func TestGeneral(t *testing.T) {
	testSuccess(t, []testCase{
		enc("mov rax, 0x1", 0xB8, 0x01, 0x00, 0x00, 0x00),
		enc("mov rax, rbx", 0x48, 0x89, 0xD8),
		enc("mov r8, r9", 0x4D, 0x89, 0xC8),
		enc("mov al, 5", 0xB0, 0x05),
		enc("mov sil, 1", 0x40, 0xB6, 0x01),
		enc("mov ax, 5", 0x66, 0xB8, 0x05, 0x00),
		enc("mov r12, 1", 0x41, 0xBC, 0x01, 0x00, 0x00, 0x00),
		enc("mov rax, -1", 0x48, 0xC7, 0xC0, 0xFF, 0xFF, 0xFF, 0xFF),
		enc("mov rax, 0x100000000",
			0x48, 0xB8, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00),
		enc("add eax, 1", 0x83, 0xC0, 0x01),
		enc("add eax, -1", 0x83, 0xC0, 0xFF),
		enc("add al, 1", 0x04, 0x01),
		enc("add ax, 1", 0x66, 0x83, 0xC0, 0x01),
		enc("add eax, 0x1000", 0x05, 0x00, 0x10, 0x00, 0x00),
		enc("add rax, 0x1000", 0x48, 0x05, 0x00, 0x10, 0x00, 0x00),
		enc("add r8, 0x1000", 0x49, 0x81, 0xC0, 0x00, 0x10, 0x00, 0x00),
		enc("and rax, -16", 0x48, 0x83, 0xE0, 0xF0),
		enc("sub rsp, 8", 0x48, 0x83, 0xEC, 0x08),
		enc("xor eax, eax", 0x31, 0xC0),
		enc("cmp rdi, rsi", 0x48, 0x39, 0xF7),
		enc("test al, 1", 0xA8, 0x01),
		enc("test eax, eax", 0x85, 0xC0),
		enc("test rdi, rdi", 0x48, 0x85, 0xFF),
		enc("imul rax, rbx", 0x48, 0x0F, 0xAF, 0xC3),
		enc("imul eax, ebx, 10", 0x6B, 0xC3, 0x0A),
		enc("shl rax, 4", 0x48, 0xC1, 0xE0, 0x04),
		enc("shr ecx, cl", 0xD3, 0xE9),
		enc("sar rdx, 63", 0x48, 0xC1, 0xFA, 0x3F),
		enc("neg rax", 0x48, 0xF7, 0xD8),
		enc("not ecx", 0xF7, 0xD1),
		enc("idiv rcx", 0x48, 0xF7, 0xF9),
		enc("sete al", 0x0F, 0x94, 0xC0),
		enc("cmovl eax, ecx", 0x0F, 0x4C, 0xC1),
		enc("movzx eax, bl", 0x0F, 0xB6, 0xC3),
		enc("movsxd rax, ecx", 0x48, 0x63, 0xC1),
		enc("xchg rax, rcx", 0x48, 0x91),
		enc("push rax", 0x50),
		enc("push r12", 0x41, 0x54),
		enc("pop rbp", 0x5D),
		enc("push 1", 0x6A, 0x01),
		enc("push -1", 0x6A, 0xFF),
		enc("push 0x80", 0x68, 0x80, 0x00, 0x00, 0x00),
		enc("call rax", 0xFF, 0xD0),
		enc("jmp r11", 0x41, 0xFF, 0xE3),
		enc("ret", 0xC3),
		enc("ret 8", 0xC2, 0x08, 0x00),
		enc("syscall", 0x0F, 0x05),
		enc("nop", 0x90),
		enc("int 0x80", 0xCD, 0x80),
		enc("cqo", 0x48, 0x99),
		enc("cdq", 0x99),
		enc("cwd", 0x66, 0x99),
		enc("in al, dx", 0xEC),
		enc("out dx, ax", 0x66, 0xEF),
	})
}

func TestMemory(t *testing.T) {
	testSuccess(t, []testCase{
		enc("add byte [r12+r13*1], 0x1", 0x43, 0x80, 0x04, 0x2C, 0x01),
		enc("mov eax, [rbx]", 0x8B, 0x03),
		enc("mov [rsp], eax", 0x89, 0x04, 0x24),
		enc("mov eax, [rbp]", 0x8B, 0x45, 0x00),
		enc("mov eax, [r13]", 0x41, 0x8B, 0x45, 0x00),
		enc("mov eax, [r12]", 0x41, 0x8B, 0x04, 0x24),
		enc("mov eax, [rbx+8]", 0x8B, 0x83, 0x08, 0x00, 0x00, 0x00),
		enc("mov eax, [rbx-8]", 0x8B, 0x83, 0xF8, 0xFF, 0xFF, 0xFF),
		enc("mov eax, [rbx+rcx*4]", 0x8B, 0x04, 0x8B),
		enc("mov eax, [rbx+4*rcx]", 0x8B, 0x04, 0x8B),
		enc("mov eax, [rbp+rcx*2]", 0x8B, 0x44, 0x4D, 0x00),
		enc("mov eax, [rcx*8]", 0x8B, 0x04, 0xCD, 0x00, 0x00, 0x00, 0x00),
		enc("mov eax, [0x1000]", 0x8B, 0x04, 0x25, 0x00, 0x10, 0x00, 0x00),
		enc("mov eax, [ebx]", 0x67, 0x8B, 0x03),
		enc("mov rax, [r8+r9*2+0x10]",
			0x4B, 0x8B, 0x84, 0x48, 0x10, 0x00, 0x00, 0x00),
		enc("mov byte [rax], 5", 0xC6, 0x00, 0x05),
		enc("mov word [rax], 0x1234", 0x66, 0xC7, 0x00, 0x34, 0x12),
		enc("mov qword [rax], 1", 0x48, 0xC7, 0x00, 0x01, 0x00, 0x00, 0x00),
		enc("inc qword [rax]", 0x48, 0xFF, 0x00),
		enc("call qword [rax]", 0xFF, 0x10),
		enc("movzx eax, byte [rdi]", 0x0F, 0xB6, 0x07),
		enc("movsx rax, word [rsi]", 0x48, 0x0F, 0xBF, 0x06),
		enc("lea rax, [rbx+8]", 0x48, 0x8D, 0x83, 0x08, 0x00, 0x00, 0x00),
	})
}

func TestFloatingPoint(t *testing.T) {
	testSuccess(t, []testCase{
		enc("fld qword [rax]", 0xDD, 0x00),
		enc("fld st1", 0xD9, 0xC1),
		enc("fadd st0, st3", 0xD8, 0xC3),
		enc("fadd st(2), st(0)", 0xDC, 0xC2),
		enc("fstp tword [rbx]", 0xDB, 0x3B),
		enc("fild word [rax]", 0xDF, 0x00),
		enc("fxch st2", 0xD9, 0xCA),
	})
}

func TestVector(t *testing.T) {
	testSuccess(t, []testCase{
		enc("movaps xmm0, xmm1", 0x0F, 0x28, 0xC1),
		enc("movaps xmm8, [rax]", 0x44, 0x0F, 0x28, 0x00),
		enc("movdqa xmm9, [r9]", 0x66, 0x45, 0x0F, 0x6F, 0x09),
		enc("addsd xmm0, xmm1", 0xF2, 0x0F, 0x58, 0xC1),
		enc("pxor xmm0, xmm0", 0x66, 0x0F, 0xEF, 0xC0),
		enc("pxor mm0, mm1", 0x0F, 0xEF, 0xC1),
		enc("movq rax, xmm0", 0x66, 0x48, 0x0F, 0x7E, 0xC0),
		enc("movq xmm0, rax", 0x66, 0x48, 0x0F, 0x6E, 0xC0),
		enc("movq xmm0, xmm1", 0xF3, 0x0F, 0x7E, 0xC1),
		enc("movd xmm1, eax", 0x66, 0x0F, 0x6E, 0xC8),
	})
}

func TestVEX(t *testing.T) {
	testSuccess(t, []testCase{
		enc("vaddps xmm0, xmm1, xmm2", 0xC5, 0xF0, 0x58, 0xC2),
		enc("vaddps xmm8, xmm1, xmm2", 0xC5, 0x70, 0x58, 0xC2),
		enc("vaddps ymm8, ymm9, ymm10", 0xC4, 0x41, 0x34, 0x58, 0xC2),
		enc("vxorps ymm0, ymm0, ymm0", 0xC5, 0xFC, 0x57, 0xC0),
		enc("vmovaps [rax], xmm1", 0xC5, 0xF8, 0x29, 0x08),
		enc("vmovups ymm0, [r8]", 0xC4, 0xC1, 0x7C, 0x10, 0x00),
		enc("vpsrld xmm1, xmm2, 4", 0xC5, 0xF1, 0x72, 0xD2, 0x04),
		enc("vpermq ymm0, ymm1, 0x1b", 0xC4, 0xE3, 0xFD, 0x00, 0xC1, 0x1B),
		enc("vblendvps xmm0, xmm1, xmm2, xmm3",
			0xC4, 0xE3, 0x71, 0x4A, 0xC2, 0x30),
		enc("vfmadd231ps xmm0, xmm1, xmm2", 0xC4, 0xE2, 0x71, 0xB8, 0xC2),
		enc("andn eax, ebx, ecx", 0xC4, 0xE2, 0x60, 0xF2, 0xC1),
		enc("bextr eax, ecx, edx", 0xC4, 0xE2, 0x68, 0xF7, 0xC1),
		enc("shlx rax, rbx, rcx", 0xC4, 0xE2, 0xF1, 0xF7, 0xC3),
	})
}

func TestExtendedRegisters(t *testing.T) {
	for n := 8; n < 16; n++ {
		low := byte(n - 8)

		testSuccess(t, []testCase{
			enc(fmt.Sprintf("mov r%d, rax", n), 0x49, 0x89, 0xC0|low),
			enc(fmt.Sprintf("mov rax, r%d", n), 0x4C, 0x89, 0xC0|low<<3),
			enc(fmt.Sprintf("mov r%dd, 7", n), 0x41, 0xB8+low, 0x07, 0x00, 0x00, 0x00),
			enc(fmt.Sprintf("movaps xmm%d, xmm0", n), 0x44, 0x0F, 0x28, 0xC0|low<<3),
			enc(fmt.Sprintf("vaddps ymm%d, ymm0, ymm0", n), 0xC5, 0x7C, 0x58, 0xC0|low<<3),
		})
	}
}

func TestImmediateWidth(t *testing.T) {
	tests := []struct {
		Input string
		Size  int
	}{
		{"add eax, 127", 3},
		{"add eax, 128", 5},
		{"add eax, -128", 3},
		{"add eax, -129", 5},
		{"add ecx, 128", 6},
		{"add cx, 0xFFFF", 4},
		{"add rcx, 0x7FFFFFFF", 7},
		{"mov ecx, 0xFFFFFFFF", 5},
		{"mov rcx, 0xFFFFFFFF", 5},
		{"mov rcx, -2147483648", 7},
		{"mov rcx, -2147483649", 10},
	}

	for _, test := range tests {
		t.Run(test.Input, func(t *testing.T) {
			program, err := assemble(t, test.Input)
			require.NoError(t, err)
			assert.Equal(t, uint64(test.Size), program.Text.Size())
		})
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		Input string
		Op    x86asm.Op
	}{
		{"mov rax, rbx", x86asm.MOV},
		{"mov rax, 0x100000000", x86asm.MOV},
		{"mov eax, [rbp+rcx*2]", x86asm.MOV},
		{"mov rax, [r8+r9*2+0x10]", x86asm.MOV},
		{"add byte [r12+r13*1], 0x1", x86asm.ADD},
		{"add r8, 0x1000", x86asm.ADD},
		{"sub rsp, 8", x86asm.SUB},
		{"xor eax, eax", x86asm.XOR},
		{"lea rax, [rbx+8]", x86asm.LEA},
		{"push r12", x86asm.PUSH},
		{"pop rbp", x86asm.POP},
		{"ret 8", x86asm.RET},
		{"syscall", x86asm.SYSCALL},
		{"movzx eax, byte [rdi]", x86asm.MOVZX},
		{"imul eax, ebx, 10", x86asm.IMUL},
		{"shl rax, 4", x86asm.SHL},
		{"test rdi, rdi", x86asm.TEST},
		{"movaps xmm8, [rax]", x86asm.MOVAPS},
		{"addsd xmm0, xmm1", x86asm.ADDSD},
		{"sete al", x86asm.SETE},
	}

	for _, test := range tests {
		t.Run(test.Input, func(t *testing.T) {
			program, err := assemble(t, test.Input)
			require.NoError(t, err)

			code := program.Text.Bytes()

			inst, err := x86asm.Decode(code, 64)
			require.NoError(t, err)
			assert.Equal(t, len(code), inst.Len)
			assert.Equal(t, test.Op, inst.Op)
		})
	}
}

func TestEncodingErrors(t *testing.T) {
	testFail(t, []failCase{
		{"Byte overflow", "mov al, 256", &assembler.SizingError{}},
		{"Dword overflow", "add eax, 0x100000000", &assembler.SizingError{}},
		{"Byte underflow", "mov byte [rax], -129", &assembler.SizingError{}},
		{"Displacement overflow", "mov eax, [rbx+0x80000000]", &assembler.SizingError{}},
		{"High byte with REX", "mov ah, sil", &assembler.SizingError{}},
		{"High byte with extended", "add ah, r8b", &assembler.SizingError{}},
		{"Size keyword mismatch", "mov eax, qword ebx", &assembler.SizingError{}},
		{"String operand", `mov rax, "a"`, &assembler.SizingError{}},
		{"Unsized memory", "mov [rax], 1", &assembler.SelectionError{}},
		{"No imm64 form", "add rax, 0x80000000", &assembler.SelectionError{}},
		{"Mismatched registers", "mov eax, rbx", &assembler.SelectionError{}},
		{"Wrong operand count", "nop rax", &assembler.SelectionError{}},
		{"RSP as index", "mov eax, [rsp*2]", &assembler.AddressingError{}},
		{"Bad scale", "mov eax, [rax*3]", &assembler.AddressingError{}},
		{"Mixed address sizes", "mov eax, [rax+ebx]", &assembler.AddressingError{}},
		{"Two indexes", "mov eax, [rax+rbx+rcx]", &assembler.AddressingError{}},
		{"16-bit address", "mov eax, [ax]", &assembler.AddressingError{}},
		{"Subtracted register", "mov eax, [rax-rbx]", &assembler.AddressingError{}},
		{"Two labels", "a:\nmov eax, [a+a]", &assembler.AddressingError{}},
		{"Label with base and index", "a:\nmov eax, [rbx+rcx+a]", &assembler.AddressingError{}},
	})
}

func TestHighByteRegisters(t *testing.T) {
	testSuccess(t, []testCase{
		enc("mov ah, bl", 0x88, 0xDC),
		enc("mov bh, 1", 0xB7, 0x01),
		enc("mov spl, al", 0x40, 0x88, 0xC4),
	})
}

func TestDeterminism(t *testing.T) {
	input := strings.Join([]string{
		"global _start",
		"section .data",
		"msg: db 'hello', 10",
		"section .text",
		"_start:",
		"  mov eax, 1",
		"  lea rsi, [rel msg]",
		"  call print",
		"  jmp _start",
		"print:",
		"  ret",
	}, "\n")

	first, err := assemble(t, input)
	require.NoError(t, err)

	second, err := assemble(t, input)
	require.NoError(t, err)

	assert.Equal(t, first.Text.Bytes(), second.Text.Bytes())
	assert.Equal(t, first.Data.Bytes(), second.Data.Bytes())
	assert.Equal(t, first.Symbols.Entries(), second.Symbols.Entries())
	assert.Equal(t, first.Records, second.Records)
}
