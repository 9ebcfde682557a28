package postwork

import (
	"fmt"

	postworkcommand "github.com/goliatone/go-postwork/command"
	postworkquery "github.com/goliatone/go-postwork/query"
)

type CommandQueryService interface {
	postworkcommand.DispatchService
	postworkcommand.CallbackService
	postworkquery.BlockReader
}

type Commands struct {
	DispatchBlock   *postworkcommand.DispatchBlockCommand
	EnqueueDispatch *postworkcommand.EnqueueDispatchCommand
	IngestCallback  *postworkcommand.IngestCallbackCommand
}

type Queries struct {
	GetBlock   *postworkquery.GetBlockQuery
	ListBlocks *postworkquery.ListBlocksQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("postwork: command/query service is required")
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		DispatchBlock:   postworkcommand.NewDispatchBlockCommand(service),
		EnqueueDispatch: postworkcommand.NewEnqueueDispatchCommand(service),
		IngestCallback:  postworkcommand.NewIngestCallbackCommand(service),
	}
	facade.queries = Queries{
		GetBlock:   postworkquery.NewGetBlockQuery(service),
		ListBlocks: postworkquery.NewListBlocksQuery(service),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
