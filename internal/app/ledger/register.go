package ledger

import (
	"rentspot/internal/app/commands"
	"rentspot/internal/app/queries"
	domain "rentspot/internal/domain/ledger"
)

// Register wires the ledger handlers into the buses.
func Register(cmds *commands.InMemoryBus, qs *queries.InMemoryBus, svc *Service) {
	commands.RegisterHandler[TransferPointsCommand, TransferResult](cmds, TransferPointsKey, &TransferPointsHandler{Ledger: svc})
	commands.RegisterHandler[DebitPointsCommand, DebitResult](cmds, DebitPointsKey, &DebitPointsHandler{Ledger: svc})
	queries.RegisterHandler[GetBalanceQuery, int64](qs, GetBalanceKey, &GetBalanceHandler{Ledger: svc})
	queries.RegisterHandler[GetPublicBalanceQuery, PublicBalance](qs, GetPublicBalanceKey, &GetPublicBalanceHandler{Ledger: svc})
	queries.RegisterHandler[ListTransactionsQuery, []domain.Transaction](qs, ListTransactionsKey, &ListTransactionsHandler{Ledger: svc})
}
