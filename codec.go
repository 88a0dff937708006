package shadowstack

// codec.go packs frame metadata into fixed bit ranges of a 64-bit header
// word. This is the single place that knows about the layout; every other
// file reads entry/numSlots/prevNumSlots through these accessors.
//
// Layout, offsets measured from the MSB:
//
//	entry          bits [0, 14)
//	numSlots       bits [14, 30)
//	prevNumSlots   bits [30, 46)

const (
	entryOffset, entryLength           = 0, 14
	numSlotsOffset, numSlotsLength     = 14, 16
	prevSlotsOffset, prevSlotsLength   = 30, 16
	maxEntry                       int = 1<<entryLength - 1
	maxSlots                       int = 1<<numSlotsLength - 1
)

func getUnsignedBits(word uint64, offset, length int) uint64 {
	shift := 64 - length - offset
	mask := uint64(1)<<length - 1
	return (word >> shift) & mask
}

// getSignedBits exists for completeness with the packed layout's bit
// utilities; no field in this codec is read with sign extension.
func getSignedBits(word uint64, offset, length int) int64 {
	shift := 64 - length
	v := getUnsignedBits(word, offset, length) << shift
	return int64(v) >> shift
}

func setBits(word uint64, offset, length int, value uint64) uint64 {
	shift := 64 - length - offset
	mask := uint64(1)<<length - 1
	word &^= mask << shift
	word |= (value & mask) << shift
	return word
}

func getEntry(record int64) int {
	return int(getUnsignedBits(uint64(record), entryOffset, entryLength))
}

func setEntry(record int64, entry int) int64 {
	return int64(setBits(uint64(record), entryOffset, entryLength, uint64(entry)))
}

func getNumSlots(record int64) int {
	return int(getUnsignedBits(uint64(record), numSlotsOffset, numSlotsLength))
}

func setNumSlots(record int64, numSlots int) int64 {
	return int64(setBits(uint64(record), numSlotsOffset, numSlotsLength, uint64(numSlots)))
}

func getPrevNumSlots(record int64) int {
	return int(getUnsignedBits(uint64(record), prevSlotsOffset, prevSlotsLength))
}

func setPrevNumSlots(record int64, numSlots int) int64 {
	return int64(setBits(uint64(record), prevSlotsOffset, prevSlotsLength, uint64(numSlots)))
}

func isFreshRecord(record int64) bool {
	return getEntry(record) == 0
}
