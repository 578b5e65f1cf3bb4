//go:build darwin

package hostinfo

/*
#cgo darwin CFLAGS: -x objective-c -fmodules -fobjc-arc
#cgo darwin LDFLAGS: -framework Cocoa
#include <Cocoa/Cocoa.h>
#include <CoreFoundation/CoreFoundation.h>
#include <libproc.h>

static CFStringRef copyFrontmostAppName(void) {
        NSRunningApplication *app = [[NSWorkspace sharedWorkspace] frontmostApplication];
        if (app == nil) {
                return NULL;
        }
        NSString *name = app.localizedName ?: @"";
        return (__bridge_retained CFStringRef)name;
}

static int countProcesses(void) {
        return proc_listallpids(NULL, 0);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"unsafe"
)

func activeApp() (string, error) {
	name := cfStringToGo(C.copyFrontmostAppName())
	if name == "" {
		return "", errors.New("no frontmost application")
	}
	return name, nil
}

func processCount() (int, error) {
	n := int(C.countProcesses())
	if n < 0 {
		return 0, fmt.Errorf("proc_listallpids returned %d", n)
	}
	return n, nil
}

func cfStringToGo(str C.CFStringRef) string {
	if str == 0 {
		return ""
	}
	defer C.CFRelease(C.CFTypeRef(str))
	length := C.CFStringGetLength(str)
	if length == 0 {
		return ""
	}
	bufSize := C.CFIndex(1 + 4*length)
	buf := make([]byte, int(bufSize))
	if C.CFStringGetCString(str, (*C.char)(unsafe.Pointer(&buf[0])), bufSize, C.kCFStringEncodingUTF8) == C.Boolean(0) {
		return ""
	}
	return C.GoString((*C.char)(unsafe.Pointer(&buf[0])))
}
