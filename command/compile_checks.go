package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[DispatchBlockMessage]   = (*DispatchBlockCommand)(nil)
	_ gocmd.Commander[EnqueueDispatchMessage] = (*EnqueueDispatchCommand)(nil)
	_ gocmd.Commander[IngestCallbackMessage]  = (*IngestCallbackCommand)(nil)
)
