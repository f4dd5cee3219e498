package vm

import "math"

// Chunk represents a sequence of bytecode instructions
type Chunk struct {
	// Code is the bytecode instructions
	Code []byte

	// Constants pool
	Constants []float64
}

// NewChunk creates a new empty chunk
func NewChunk() *Chunk {
	return &Chunk{
		Code:      make([]byte, 0, 64),
		Constants: make([]float64, 0, 8),
	}
}

// Write adds a byte to the chunk
func (c *Chunk) Write(b byte) {
	c.Code = append(c.Code, b)
}

// WriteOp writes an opcode to the chunk
func (c *Chunk) WriteOp(op Opcode) {
	c.Write(byte(op))
}

// WriteShort writes a 2-byte operand
func (c *Chunk) WriteShort(v int) {
	c.Write(byte(v >> 8))
	c.Write(byte(v))
}

// AddConstant adds a constant to the pool and returns its index.
// Equal constants share one entry.
func (c *Chunk) AddConstant(value float64) int {
	for i, k := range c.Constants {
		if math.Float64bits(k) == math.Float64bits(value) {
			return i
		}
	}
	c.Constants = append(c.Constants, value)
	return len(c.Constants) - 1
}

// WriteConstant writes OP_CONST followed by the constant index
func (c *Chunk) WriteConstant(value float64) {
	idx := c.AddConstant(value)
	c.WriteOp(OP_CONST)
	c.WriteShort(idx)
}

// ReadShort reads a 2-byte operand at offset
func (c *Chunk) ReadShort(offset int) int {
	return int(c.Code[offset])<<8 | int(c.Code[offset+1])
}

// Len returns the number of bytes in the chunk
func (c *Chunk) Len() int {
	return len(c.Code)
}
