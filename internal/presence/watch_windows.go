//go:build windows

package presence

import (
	"context"
	"sync"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
)

func watchProcess(ctx context.Context, name string, onChange func()) {
	var wg sync.WaitGroup
	for _, class := range []string{"Win32_ProcessStartTrace", "Win32_ProcessStopTrace"} {
		wg.Add(1)
		go func(class string) {
			defer wg.Done()
			wmiTraceLoop(ctx, class, func(procName string) {
				if sameImage(procName, name) {
					onChange()
				}
			})
		}(class)
	}
	wg.Wait()
}

// wmiTraceLoop subscribes to a process trace class and reports the process
// name of every event until ctx is done. Subscribing needs elevated rights on
// most systems; on failure it returns and polling carries on alone.
func wmiTraceLoop(ctx context.Context, className string, onEvent func(name string)) {
	_ = ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED)
	defer ole.CoUninitialize()

	locatorObj, err := oleutil.CreateObject("WbemScripting.SWbemLocator")
	if err != nil {
		return
	}
	defer locatorObj.Release()

	locator, err := locatorObj.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return
	}
	defer locator.Release()

	svcRaw, err := oleutil.CallMethod(locator, "ConnectServer", nil, `root\cimv2`)
	if err != nil {
		return
	}
	svc := svcRaw.ToIDispatch()
	defer svc.Release()

	srcRaw, err := oleutil.CallMethod(svc, "ExecNotificationQuery", "SELECT * FROM "+className)
	if err != nil {
		return
	}
	src := srcRaw.ToIDispatch()
	defer src.Release()

	for ctx.Err() == nil {
		// NextEvent times out after 1s so ctx is rechecked regularly.
		evRaw, err := oleutil.CallMethod(src, "NextEvent", 1000)
		if err != nil {
			continue
		}
		ev := evRaw.ToIDispatch()
		if ev == nil {
			continue
		}
		nameV, err := oleutil.GetProperty(ev, "ProcessName")
		if err == nil && nameV != nil {
			onEvent(nameV.ToString())
		}
		ev.Release()
	}
}
