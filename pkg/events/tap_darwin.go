//go:build darwin

package events

/*
#cgo darwin CFLAGS: -x objective-c -fmodules -fobjc-arc
#cgo darwin LDFLAGS: -framework CoreGraphics -framework ApplicationServices
#include <ApplicationServices/ApplicationServices.h>
#include <CoreFoundation/CoreFoundation.h>
#include <stdbool.h>
#include <stdint.h>

static Boolean axCheckTrusted(void) {
        const void *keys[] = { kAXTrustedCheckOptionPrompt };
        const void *values[] = { kCFBooleanTrue };
        CFDictionaryRef options = CFDictionaryCreate(kCFAllocatorDefault, keys, values, 1,
                                                     &kCFTypeDictionaryKeyCallBacks,
                                                     &kCFTypeDictionaryValueCallBacks);
        Boolean trusted = AXIsProcessTrustedWithOptions(options);
        CFRelease(options);
        return trusted;
}

extern CGEventRef goHandleEvent(CGEventTapProxy proxy, CGEventType type, CGEventRef event, void *userInfo);

static CFRunLoopSourceRef startEventTap(uintptr_t handle, CGEventMask mask, CFMachPortRef *tapOut) {
        CFMachPortRef tap = CGEventTapCreate(kCGSessionEventTap,
                                             kCGHeadInsertEventTap,
                                             kCGEventTapOptionListenOnly,
                                             mask,
                                             goHandleEvent,
                                             (void *)handle);
        if (tap == NULL) {
                return NULL;
        }
        CGEventTapEnable(tap, true);
        CFRunLoopSourceRef source = CFMachPortCreateRunLoopSource(kCFAllocatorDefault, tap, 0);
        *tapOut = tap;
        return source;
}

static void setTapEnabled(CFMachPortRef tap, bool enabled) {
        CGEventTapEnable(tap, enabled);
}

static CFRunLoopRef currentRunLoop(void) {
        return CFRunLoopGetCurrent();
}

static CGEventMask cgEventMaskBit(CGEventType type) {
        return ((CGEventMask)1) << type;
}

static void addSourceToRunLoop(CFRunLoopRef loop, CFRunLoopSourceRef source) {
        CFRunLoopAddSource(loop, source, kCFRunLoopCommonModes);
}

static void runCurrentRunLoop(void) {
        CFRunLoopRun();
}

static void stopRunLoop(CFRunLoopRef loop) {
        CFRunLoopStop(loop);
}

static double cgEventGetX(CGEventRef event) {
        CGPoint point = CGEventGetLocation(event);
        return point.x;
}

static double cgEventGetY(CGEventRef event) {
        CGPoint point = CGEventGetLocation(event);
        return point.y;
}

static int64_t cgEventGetKeycode(CGEventRef event) {
        return CGEventGetIntegerValueField(event, kCGKeyboardEventKeycode);
}

static int64_t cgEventGetWheelDelta(CGEventRef event) {
        return CGEventGetIntegerValueField(event, kCGScrollWheelEventDeltaAxis1);
}
*/
import "C"

import (
	"runtime"
	"runtime/cgo"
	"sync"
	"time"
	"unsafe"
)

type quartzSource struct{}

func defaultEventSource(opts Options) Source {
	return quartzSource{}
}

// quartzTap is the per-subscription state reachable from the C callback
// through a cgo.Handle, so independent subscriptions never share a global.
type quartzTap struct {
	handler Handler
	tap     C.CFMachPortRef

	mu      sync.Mutex
	loop    C.CFRunLoopRef
	running bool

	done chan struct{}
	once sync.Once
}

func (quartzSource) Subscribe(handler Handler) (Subscription, error) {
	if handler == nil {
		return nil, ErrTapUnavailable
	}
	if C.axCheckTrusted() == C.Boolean(0) {
		return nil, ErrAccessibilityPermission
	}

	q := &quartzTap{handler: handler, done: make(chan struct{})}
	ready := make(chan error, 1)
	go q.run(ready)
	if err := <-ready; err != nil {
		<-q.done
		return nil, err
	}
	return q, nil
}

// run owns the OS thread for the lifetime of the tap; the run loop and the
// tap callback both execute here.
func (q *quartzTap) run(ready chan<- error) {
	defer close(q.done)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	handle := cgo.NewHandle(q)
	defer handle.Delete()

	mask := C.cgEventMaskBit(C.kCGEventKeyDown) |
		C.cgEventMaskBit(C.kCGEventKeyUp) |
		C.cgEventMaskBit(C.kCGEventLeftMouseDown) |
		C.cgEventMaskBit(C.kCGEventLeftMouseUp) |
		C.cgEventMaskBit(C.kCGEventRightMouseDown) |
		C.cgEventMaskBit(C.kCGEventRightMouseUp) |
		C.cgEventMaskBit(C.kCGEventMouseMoved) |
		C.cgEventMaskBit(C.kCGEventLeftMouseDragged) |
		C.cgEventMaskBit(C.kCGEventRightMouseDragged) |
		C.cgEventMaskBit(C.kCGEventScrollWheel)

	var tap C.CFMachPortRef
	source := C.startEventTap(C.uintptr_t(handle), mask, &tap)
	if source == 0 {
		ready <- ErrTapUnavailable
		return
	}
	defer C.CFRelease(C.CFTypeRef(source))
	defer C.CFRelease(C.CFTypeRef(tap))

	loop := C.currentRunLoop()
	q.mu.Lock()
	q.tap = tap
	q.loop = loop
	q.running = true
	q.mu.Unlock()

	C.addSourceToRunLoop(loop, source)
	ready <- nil
	C.runCurrentRunLoop()

	q.mu.Lock()
	q.running = false
	q.mu.Unlock()
}

// Unsubscribe disables the tap, stops the run loop and joins its goroutine.
func (q *quartzTap) Unsubscribe() error {
	q.once.Do(func() {
		q.mu.Lock()
		if q.running {
			C.setTapEnabled(q.tap, C.bool(false))
		}
		q.mu.Unlock()

		// CFRunLoopStop is a no-op until the loop is running, so keep
		// signalling until the goroutine exits.
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			q.mu.Lock()
			if q.running {
				C.stopRunLoop(q.loop)
			}
			q.mu.Unlock()
			select {
			case <-q.done:
				return
			case <-ticker.C:
			}
		}
	})
	return nil
}

func (q *quartzTap) deliver(eventType C.CGEventType, event C.CGEventRef) {
	n := Notification{}
	switch eventType {
	case C.kCGEventKeyDown:
		n.Kind = KindKeyDown
		n.KeyCode = int(C.cgEventGetKeycode(event))
		q.handler(n)
		return
	case C.kCGEventKeyUp:
		n.Kind = KindKeyUp
		n.KeyCode = int(C.cgEventGetKeycode(event))
		q.handler(n)
		return
	case C.kCGEventMouseMoved, C.kCGEventLeftMouseDragged, C.kCGEventRightMouseDragged:
		n.Kind = KindPointerMove
	case C.kCGEventLeftMouseDown:
		n.Kind = KindPrimaryDown
	case C.kCGEventLeftMouseUp:
		n.Kind = KindPrimaryUp
	case C.kCGEventRightMouseDown:
		n.Kind = KindSecondaryDown
	case C.kCGEventRightMouseUp:
		n.Kind = KindSecondaryUp
	case C.kCGEventScrollWheel:
		n.Kind = KindWheel
		n.WheelDelta = int(C.cgEventGetWheelDelta(event))
	default:
		return
	}
	n.X = int(C.cgEventGetX(event))
	n.Y = int(C.cgEventGetY(event))
	q.handler(n)
}

//export goHandleEvent
func goHandleEvent(_ C.CGEventTapProxy, eventType C.CGEventType, event C.CGEventRef, userInfo unsafe.Pointer) C.CGEventRef {
	handle := cgo.Handle(uintptr(userInfo))
	q, ok := handle.Value().(*quartzTap)
	if !ok {
		return event
	}

	switch eventType {
	case C.kCGEventTapDisabledByTimeout, C.kCGEventTapDisabledByUserInput:
		// The window server disables slow taps; turn it back on.
		C.setTapEnabled(q.tap, C.bool(true))
		return event
	}

	q.deliver(eventType, event)
	return event
}
