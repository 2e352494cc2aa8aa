package actorutil

import (
	"github.com/asynkron/protoactor-go/actor"
)

type Stash struct {
	stash []stashElem
}

type stashElem struct {
	msg    any
	sender *actor.PID
}

func (stash *Stash) Stash(ctx actor.Context, msg any) {
	stash.stash = append(stash.stash, stashElem{
		msg:    msg,
		sender: ctx.Sender(),
	})
}

func (stash *Stash) Len() int {
	return len(stash.stash)
}

func (stash *Stash) UnstashAll(ctx actor.Context) {
	for _, elem := range stash.stash {
		ctx.RequestWithCustomSender(ctx.Self(), elem.msg, elem.sender)
	}
	stash.stash = nil
}

func (stash *Stash) UnstashOldest(ctx actor.Context) {
	if len(stash.stash) > 0 {
		first := stash.stash[0]
		ctx.RequestWithCustomSender(ctx.Self(), first.msg, first.sender)
		stash.stash = stash.stash[1:]
	}
}

// Slot keeps at most one pending message, newer messages replace the older one
type Slot struct {
	elem *stashElem
}

func (slot *Slot) Put(ctx actor.Context, msg any) (replaced bool) {
	replaced = slot.elem != nil
	slot.elem = &stashElem{
		msg:    msg,
		sender: ctx.Sender(),
	}
	return replaced
}

func (slot *Slot) Empty() bool {
	return slot.elem == nil
}

// Take redelivers the pending message to self, if any
func (slot *Slot) Take(ctx actor.Context) bool {
	if slot.elem == nil {
		return false
	}
	elem := slot.elem
	slot.elem = nil
	ctx.RequestWithCustomSender(ctx.Self(), elem.msg, elem.sender)
	return true
}
