package rpi3

import (
	"unsafe"

	"github.com/mazboot/rpi3kernel/internal/bsp/rpi3/reg"
)

// Mailbox channel/status bits, grounded on usbarmory-tamago's
// soc/bcm2835/mailbox.go (MAILBOX_READ_REG/STATUS_REG/WRITE_REG,
// MAILBOX_FULL/EMPTY), retargeted to the Pi 3 MMIO base.
const (
	mailboxReadOffset   = 0x00
	mailboxStatusOffset = 0x18
	mailboxWriteOffset  = 0x20

	mailboxFull  = 1 << 31
	mailboxEmpty = 1 << 30

	mailboxChannelPropertyVC = 8
)

// mailboxBuffer is the property-channel message buffer. The VideoCore
// mailbox protocol requires a 16-byte aligned physical address; like
// package table's rawTable pool, we reserve twice the needed space and
// round the usable window up to the required alignment rather than rely
// on the Go compiler's own alignment of a package-level array.
var mailboxBuffer [512]byte

func alignedMailboxBuffer() []uint32 {
	addr := uintptr(unsafe.Pointer(&mailboxBuffer[0]))
	aligned := (addr + 15) &^ 15
	offset := aligned - addr
	return unsafe.Slice((*uint32)(unsafe.Pointer(aligned)), (len(mailboxBuffer)-int(offset))/4)
}

// MailboxTag is one property-tag request/response pair.
type MailboxTag struct {
	ID     uint32
	Values []uint32 // request values in, response values out
}

// MailboxCall exchanges a sequence of property tags with the VideoCore
// firmware over channel 8 and reports whether the firmware accepted the
// request (response code 0x80000000).
func MailboxCall(tags []MailboxTag) bool {
	checkRegisterOffset("mailbox", MailboxSize, mailboxWriteOffset)
	buf := alignedMailboxBuffer()

	idx := 2 // [0]=size, [1]=request code
	for _, tag := range tags {
		buf[idx] = tag.ID
		buf[idx+1] = uint32(len(tag.Values) * 4) // buffer size
		buf[idx+2] = 0                           // request/response indicator
		idx += 3
		for _, v := range tag.Values {
			buf[idx] = v
			idx++
		}
	}
	buf[idx] = 0 // end tag
	idx++

	buf[0] = uint32(idx * 4) // total message size in bytes
	buf[1] = 0               // request

	msgAddr := uint32(uintptr(unsafe.Pointer(&buf[0])))

	reg.WaitFor(MailboxBase+mailboxStatusOffset, func(v uint32) bool { return v&mailboxFull == 0 })
	reg.Write32(MailboxBase+mailboxWriteOffset, (msgAddr&^0xF)|mailboxChannelPropertyVC)

	for {
		reg.WaitFor(MailboxBase+mailboxStatusOffset, func(v uint32) bool { return v&mailboxEmpty == 0 })
		resp := reg.Read32(MailboxBase + mailboxReadOffset)
		if resp&0xF == mailboxChannelPropertyVC {
			break
		}
	}

	if buf[1] != 0x80000000 {
		return false
	}

	idx = 2
	for i := range tags {
		tags[i].Values = append(tags[i].Values[:0], buf[idx+3:idx+3+len(tags[i].Values)]...)
		idx += 3 + len(tags[i].Values)
	}
	return true
}
