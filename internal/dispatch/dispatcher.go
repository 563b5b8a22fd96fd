// Package dispatch routes inbound gateway events to the command handler and
// the order lifecycle. It is the consumer-side counterpart of the outbound
// gateway: one HandleEvent call per relayed chat event.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/example/trader-bot/internal/command"
	"github.com/example/trader-bot/internal/gateway"
	"github.com/example/trader-bot/internal/lifecycle"
	"github.com/example/trader-bot/internal/session"
)

// Command names as registered with the chat platform.
const (
	CmdTrader      = "trader"
	CmdSellTrader  = "selltrader"
	CmdTradePost   = "tradepost"
	CmdAddItem     = "additem"
	CmdAddItems    = "additems"
	CmdViewCart    = "vieworder"
	CmdRemoveLast  = "removelast"
	CmdSubmit      = "submitorder"
	CmdCancel      = "cancelorder"
	CmdPayTrader   = "paytrader"
	CmdClearOrders = "clearorders"
)

// Dispatcher decodes inbound events and invokes the right operation.
// Command replies go back to the actor as direct messages; trading commands
// outside the economy channel are ignored.
type Dispatcher struct {
	commands         *command.Handler
	machine          *lifecycle.Machine
	gw               gateway.ChatGateway
	economyChannelID string
}

func NewDispatcher(
	commands *command.Handler,
	machine *lifecycle.Machine,
	gw gateway.ChatGateway,
	economyChannelID string,
) *Dispatcher {
	return &Dispatcher{
		commands:         commands,
		machine:          machine,
		gw:               gw,
		economyChannelID: economyChannelID,
	}
}

// HandleEvent is the Kafka consumer callback for the inbound topic.
func (d *Dispatcher) HandleEvent(ctx context.Context, key, value []byte) error {
	eventType, payload, err := gateway.DecodeEvent(value)
	if err != nil {
		// Malformed traffic is logged and dropped, never retried.
		log.Printf("[Dispatch] Dropping undecodable event: %v", err)
		return nil
	}

	switch ev := payload.(type) {
	case gateway.CommandEvent:
		d.handleCommand(ctx, ev)
	case gateway.AcknowledgeEvent:
		if err := d.machine.HandleAcknowledge(ctx, ev); err != nil {
			log.Printf("[Dispatch] Acknowledge on %s failed: %v", ev.MessageID, err)
		}
	case gateway.StorageSelectEvent:
		if err := d.machine.HandleStorageSelect(ctx, ev); err != nil {
			log.Printf("[Dispatch] Storage select on %s failed: %v", ev.MessageID, err)
		}
	default:
		log.Printf("[Dispatch] Ignoring event type %q", eventType)
	}
	return nil
}

func (d *Dispatcher) handleCommand(ctx context.Context, ev gateway.CommandEvent) {
	if ev.Name != CmdClearOrders && ev.ChannelID != d.economyChannelID {
		log.Printf("[Dispatch] Ignoring %s outside economy channel", ev.Name)
		return
	}

	reply, err := d.runCommand(ctx, ev)
	if err != nil {
		log.Printf("[Dispatch] Command %s from %s failed: %v", ev.Name, ev.ActorID, err)
		reply = command.UserMessage(err)
	}
	if reply == "" {
		return
	}
	if _, err := d.gw.SendDirect(ctx, ev.ActorID, reply); err != nil {
		log.Printf("[Dispatch] Failed to reply to %s: %v", ev.ActorID, err)
	}
}

func (d *Dispatcher) runCommand(ctx context.Context, ev gateway.CommandEvent) (string, error) {
	switch ev.Name {
	case CmdTrader:
		return d.commands.StartSession(ctx, command.StartSession{UserID: ev.ActorID, Kind: session.KindBuy})
	case CmdSellTrader:
		return d.commands.StartSession(ctx, command.StartSession{UserID: ev.ActorID, Kind: session.KindSell})
	case CmdTradePost:
		return d.commands.StartSession(ctx, command.StartSession{UserID: ev.ActorID, Kind: session.KindTradePost})
	case CmdAddItem:
		quantity, err := parseQuantity(ev.Args["quantity"])
		if err != nil {
			return "", err
		}
		return d.commands.AddItem(ctx, command.AddItem{
			UserID:      ev.ActorID,
			Category:    ev.Args["category"],
			Subcategory: ev.Args["subcategory"],
			Item:        ev.Args["item"],
			Variant:     ev.Args["variant"],
			Quantity:    quantity,
		})
	case CmdAddItems:
		return d.commands.AddItemsText(ctx, command.AddItemsText{UserID: ev.ActorID, Text: ev.Args["order"]})
	case CmdViewCart:
		return d.commands.ViewCart(ctx, command.ViewCart{UserID: ev.ActorID})
	case CmdRemoveLast:
		return d.commands.RemoveLastItem(ctx, command.RemoveLastItem{UserID: ev.ActorID})
	case CmdSubmit:
		return d.commands.SubmitOrder(ctx, command.SubmitOrder{UserID: ev.ActorID})
	case CmdCancel:
		return d.commands.CancelSession(ctx, command.CancelSession{UserID: ev.ActorID})
	case CmdPayTrader:
		return d.commands.PayTrader(ctx, command.PayTrader{UserID: ev.ActorID})
	case CmdClearOrders:
		return d.commands.ClearOrders(ctx, command.ClearOrders{ActorID: ev.ActorID, ActorRoles: ev.ActorRoles})
	default:
		return "", fmt.Errorf("unknown command %q", ev.Name)
	}
}

func parseQuantity(raw string) (int, error) {
	quantity, err := strconv.Atoi(raw)
	if err != nil {
		return 0, command.ErrInvalidQuantity
	}
	return quantity, nil
}
