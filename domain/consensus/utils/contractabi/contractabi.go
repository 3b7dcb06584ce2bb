// Package contractabi validates a deployed contract module's bytecode
// format (spec.md §6.2). It is a pure validator: parsing or interpreting
// an ELF64 module's section/program headers is the (not-yet-built) VM
// interpreter's job, out of scope for the consensus core.
package contractabi

import "github.com/pkg/errors"

// elfMagic is the 4-byte ELF magic an ELF64 module must begin with.
var elfMagic = [4]byte{0x7F, 'E', 'L', 'F'}

// elfClass64 is the ELF header's class byte (EI_CLASS) value for a
// 64-bit object, immediately following the magic bytes.
const elfClass64 = 2

// ErrNotELF64 is returned when module bytecode fails the ELF64 magic
// byte or class check.
var ErrNotELF64 = errors.New("contract module is not ELF64-formatted")

// ValidateModule checks that module begins with the ELF magic bytes
// and declares the 64-bit class. It performs no further parsing of the
// module - whether the rest of it is well-formed, let alone safe to
// execute, is left to the interpreter.
func ValidateModule(module []byte) error {
	if len(module) < 5 {
		return ErrNotELF64
	}
	if module[0] != elfMagic[0] || module[1] != elfMagic[1] || module[2] != elfMagic[2] || module[3] != elfMagic[3] {
		return ErrNotELF64
	}
	if module[4] != elfClass64 {
		return ErrNotELF64
	}
	return nil
}
