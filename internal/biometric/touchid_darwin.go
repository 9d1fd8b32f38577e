//go:build darwin

package biometric

/*
#cgo CFLAGS: -x objective-c -fobjc-arc
#cgo LDFLAGS: -framework LocalAuthentication -framework Foundation

#import <LocalAuthentication/LocalAuthentication.h>
#import <Foundation/Foundation.h>
#import <dispatch/dispatch.h>
#include <stdlib.h>

static int atlas_bio_available(void) {
	@autoreleasepool {
		LAContext *context = [[LAContext alloc] init];
		if (!context) {
			return -100;
		}
		NSError *canError = nil;
		if (![context canEvaluatePolicy:LAPolicyDeviceOwnerAuthenticationWithBiometrics error:&canError]) {
			return canError ? (int)[canError code] : -101;
		}
		return 0;
	}
}

static int atlas_bio_prompt(const char *cReason) {
	@autoreleasepool {
		NSString *reason = cReason ? [[NSString alloc] initWithUTF8String:cReason] : @"Authenticate to continue";
		if (!reason) {
			reason = @"Authenticate to continue";
		}

		LAContext *context = [[LAContext alloc] init];
		if (!context) {
			return -100;
		}

		NSError *canError = nil;
		if (![context canEvaluatePolicy:LAPolicyDeviceOwnerAuthenticationWithBiometrics error:&canError]) {
			return canError ? (int)[canError code] : -101;
		}

		dispatch_semaphore_t sema = dispatch_semaphore_create(0);

		__block BOOL success = NO;
		__block NSError *evalError = nil;

		[context evaluatePolicy:LAPolicyDeviceOwnerAuthenticationWithBiometrics
		        localizedReason:reason
		                  reply:^(BOOL evaluated, NSError * _Nullable error) {
		                      success = evaluated;
		                      evalError = error;
		                      dispatch_semaphore_signal(sema);
		                  }];

		dispatch_time_t timeout = dispatch_time(DISPATCH_TIME_NOW, (int64_t)(60 * NSEC_PER_SEC));
		long waitResult = dispatch_semaphore_wait(sema, timeout);
		[context invalidate];

		if (waitResult != 0) {
			return -103;
		}
		if (success) {
			return 0;
		}
		return evalError ? (int)[evalError code] : -104;
	}
}
*/
import "C"

import (
	"context"
	"strings"
	"unsafe"
)

// LocalAuthentication LAError codes, plus the prompt helper's own codes.
const (
	laAuthenticationFailed = -1
	laUserCancel           = -2
	laUserFallback         = -3
	laSystemCancel         = -4
	laPasscodeNotSet       = -5
	laBiometryNotAvailable = -6
	laBiometryNotEnrolled  = -7
	laBiometryLockout      = -8
	laAppCancel            = -9
	promptTimeout          = -103
)

// TouchID authenticates with LocalAuthentication's biometrics policy.
type TouchID struct{}

// Platform returns the native gate for this host.
func Platform() Gate { return TouchID{} }

func (TouchID) Available() bool {
	return int(C.atlas_bio_available()) == 0
}

// Authenticate shows the Touch ID sheet. The prompt itself blocks in native
// code for up to 60 seconds; a cancelled ctx returns Cancelled immediately.
func (TouchID) Authenticate(ctx context.Context, reason string) (Result, error) {
	if strings.TrimSpace(reason) == "" {
		reason = defaultReason
	}

	done := make(chan int, 1)
	go func() {
		cReason := C.CString(reason)
		defer C.free(unsafe.Pointer(cReason))
		done <- int(C.atlas_bio_prompt(cReason))
	}()

	select {
	case <-ctx.Done():
		return Result{Outcome: Cancelled, Reason: "authentication cancelled"}, nil
	case code := <-done:
		return resultForCode(code)
	}
}

func resultForCode(code int) (Result, error) {
	switch code {
	case 0:
		return Result{Outcome: Succeeded}, nil
	case laUserCancel, laSystemCancel, laAppCancel, laUserFallback, promptTimeout:
		return Result{Outcome: Cancelled, Reason: "authentication cancelled"}, nil
	case laAuthenticationFailed:
		return Result{Outcome: Failed, Reason: "fingerprint not recognised"}, nil
	case laBiometryLockout:
		return Result{}, &UnavailableError{Code: code, Reason: "Touch ID is locked out; unlock with your password"}
	case laBiometryNotEnrolled:
		return Result{}, &UnavailableError{Code: code, Reason: "no fingerprints are enrolled"}
	case laBiometryNotAvailable:
		return Result{}, &UnavailableError{Code: code, Reason: "Touch ID is not available on this device"}
	case laPasscodeNotSet:
		return Result{}, &UnavailableError{Code: code, Reason: "no device password is set"}
	default:
		return Result{Outcome: Failed, Reason: "authentication failed"}, nil
	}
}
