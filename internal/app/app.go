// Package app assembles the use-case handlers behind the command and query
// buses together with their middleware.
package app

import (
	"log/slog"

	"staybook/internal/app/allocator"
	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	availabilityapp "staybook/internal/app/handlers/availability"
	bookingapp "staybook/internal/app/handlers/booking"
	searchapp "staybook/internal/app/handlers/search"
	"staybook/internal/app/ledger"
	"staybook/internal/app/middleware"
	"staybook/internal/app/outbox"
	"staybook/internal/app/queries"
	"staybook/internal/app/reservation"
)

type Deps struct {
	Coordinator   *reservation.Coordinator
	Allocator     *allocator.Allocator
	Ledger        *ledger.Ledger
	Outbox        outbox.Outbox
	Idempotency   middleware.IdempotencyStore
	RequirePrefix bool
	Logger        *slog.Logger
}

type Buses struct {
	Commands commands.Bus
	Queries  queries.Bus
}

func Build(d Deps) Buses {
	commandBus := commands.NewInMemoryBus()
	commands.Register[bookingapp.CreateBookingCommand, *dto.Booking](commandBus, &bookingapp.CreateBookingHandler{Coordinator: d.Coordinator})
	commands.Register[bookingapp.CancelBookingCommand, *dto.CancelResult](commandBus, &bookingapp.CancelBookingHandler{Coordinator: d.Coordinator})
	commands.Register[bookingapp.CompleteBookingCommand, *dto.Booking](commandBus, &bookingapp.CompleteBookingHandler{Coordinator: d.Coordinator})
	commands.Register[availabilityapp.SetMaintenanceCommand, *dto.Calendar](commandBus, &availabilityapp.SetMaintenanceHandler{Ledger: d.Ledger, Logger: d.Logger})

	queryBus := queries.NewInMemoryBus()
	queries.Register[bookingapp.ValidateSelectionQuery, dto.SelectionValidation](queryBus, &bookingapp.ValidateSelectionHandler{Coordinator: d.Coordinator})
	queries.Register[bookingapp.GetBookingQuery, dto.Booking](queryBus, &bookingapp.GetBookingHandler{Coordinator: d.Coordinator})
	queries.Register[bookingapp.ListMyBookingsQuery, dto.BookingCollection](queryBus, &bookingapp.ListMyBookingsHandler{Coordinator: d.Coordinator, Logger: d.Logger})
	queries.Register[searchapp.SearchRoomsQuery, dto.SearchResult](queryBus, &searchapp.SearchRoomsHandler{Allocator: d.Allocator})
	queries.Register[availabilityapp.GetCalendarQuery, dto.Calendar](queryBus, &availabilityapp.GetCalendarHandler{Ledger: d.Ledger})

	validator := middleware.NewStructValidator()
	authorizer := middleware.UserAuthorizer{RequirePrefix: d.RequirePrefix}

	cmdMiddleware := []middleware.CommandMiddleware{
		middleware.Authorization(authorizer),
		middleware.Validation(validator),
	}
	if d.Idempotency != nil {
		cmdMiddleware = append(cmdMiddleware, middleware.Idempotency(d.Idempotency, nil))
	}
	if d.Outbox != nil {
		cmdMiddleware = append(cmdMiddleware, middleware.OutboxFlush(d.Outbox, d.Logger))
	}

	return Buses{
		Commands: middleware.ChainCommands(commandBus, cmdMiddleware...),
		Queries: middleware.ChainQueries(queryBus,
			middleware.QueryAuthorization(authorizer),
			middleware.QueryValidation(validator),
		),
	}
}
