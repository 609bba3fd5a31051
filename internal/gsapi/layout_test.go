package gsapi

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

func TestDisplayCallbackLayout(t *testing.T) {
	ptr := unsafe.Sizeof(uintptr(0))

	// three ints, padded to pointer alignment, then eleven function pointers
	header := (3*unsafe.Sizeof(int32(0)) + ptr - 1) / ptr * ptr
	assert.Equal(t, header+11*ptr, unsafe.Sizeof(displayCallback{}))
	assert.Equal(t, header, unsafe.Offsetof(displayCallback{}.open))
}

func TestMoreToComeFlag(t *testing.T) {
	typ := int32(ParamInt) | paramMoreToCome
	assert.Equal(t, uint32(0x80000002), uint32(typ))
}

func TestHandleRegistry(t *testing.T) {
	inst := &nativeInstance{}
	h := register(inst)
	assert.Same(t, inst, lookup(h))

	unregister(h)
	assert.Nil(t, lookup(h))

	// output for an unknown handle is swallowed but acknowledged
	assert.Equal(t, uintptr(5), writeStdio(h, unsafe.Pointer(&[]byte("hello")[0]), 5, false))
}
