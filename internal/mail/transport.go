// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package mail

import "context"

// Transport delivers one message. It is the only collaborator that leaves the
// process; a returned error schedules a retry.
type Transport interface {
	Send(context context.Context, message Message) error
}
