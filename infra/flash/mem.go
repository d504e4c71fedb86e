package flash

// Op identifies a flash operation for fault injection.
type Op int

const (
	OpRead Op = iota
	OpWrite
	OpErase
)

// Fault decides whether an operation at off of length n fails.
// Returning nil lets the operation proceed.
type Fault func(op Op, off uint32, n int) error

// Mem is a RAM-backed area. It is the test double for real flash and is
// also handy for volatile logging on hosts.
type Mem struct {
	layout
	data  []byte
	fault Fault
}

// NewMem returns an erased in-memory area of size bytes.
func NewMem(size, sectorSize uint32) (*Mem, error) {
	l, err := newLayout(size, sectorSize)
	if err != nil {
		return nil, err
	}
	m := &Mem{layout: l, data: make([]byte, size)}
	fillErased(m.data)
	return m, nil
}

// SetFault installs f; nil clears it.
func (m *Mem) SetFault(f Fault) {
	m.fault = f
}

func (m *Mem) Size() uint32 {
	return m.size
}

func (m *Mem) Read(off uint32, p []byte) error {
	if err := m.check(off, len(p)); err != nil {
		return err
	}
	if err := m.inject(OpRead, off, len(p)); err != nil {
		return err
	}
	copy(p, m.data[off:])
	return nil
}

func (m *Mem) Write(off uint32, p []byte) error {
	if err := m.check(off, len(p)); err != nil {
		return err
	}
	if err := m.inject(OpWrite, off, len(p)); err != nil {
		return err
	}
	program(m.data[off:], p)
	return nil
}

func (m *Mem) Erase(off, size uint32) error {
	if err := m.checkErase(off, size); err != nil {
		return err
	}
	if err := m.inject(OpErase, off, int(size)); err != nil {
		return err
	}
	fillErased(m.data[off : off+size])
	return nil
}

func (m *Mem) Sectors(max int) ([]Sector, error) {
	return m.sectors(max)
}

// Bytes exposes the raw image. Tests use it to corrupt entries.
func (m *Mem) Bytes() []byte {
	return m.data
}

func (m *Mem) inject(op Op, off uint32, n int) error {
	if m.fault == nil {
		return nil
	}
	return m.fault(op, off, n)
}
