// Package cui is the interactive terminal front-end, shown when the CLI is
// invoked with no subcommand. It reports the connected reader, the card's
// ATR and type, and its serial number.
package cui

import (
	"fmt"

	"github.com/malivvan/cui"
	"github.com/malivvan/opgpcard/card"
	"github.com/malivvan/opgpcard/scard"
)

// Execute renders the status screen and blocks until the user quits.
func Execute(version, keyring string) error {
	status, statusErr := readCardStatus()

	app := cui.NewApplication()

	view := cui.NewFlex()
	left := cui.NewTextView()
	left.SetText("opgpcard " + version)
	left.SetTextAlign(cui.AlignLeft)
	mid := cui.NewTextView()
	if statusErr != nil {
		mid.SetText(fmt.Sprintf("no card: %s", statusErr))
	} else {
		mid.SetText(status)
	}
	mid.SetTextAlign(cui.AlignCenter)
	right := cui.NewTextView()
	right.SetText(keyring + "\nPress Ctrl+C to exit")
	right.SetTextAlign(cui.AlignRight)
	view.SetDirection(cui.FlexColumn)
	view.AddItem(left, 0, 1, false)
	view.AddItem(mid, 0, 3, false)
	view.AddItem(right, 0, 1, false)
	app.SetRoot(view, true)

	return app.Run()
}

func readCardStatus() (string, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return "", err
	}
	defer ctx.Release()

	readers, err := ctx.ListReadersWithCard()
	if err != nil {
		return "", err
	}
	if len(readers) == 0 {
		return "", fmt.Errorf("no reader with a card present")
	}
	reader := readers[0]
	c, err := reader.Connect()
	if err != nil {
		return "", err
	}
	defer c.Disconnect()

	sess := card.NewSession(c.AsTransport(), card.DefaultPublicKeyEncoder{})
	if err := sess.Init(); err != nil {
		return "", err
	}
	defer sess.Finish()

	serial, err := sess.CardCtl(card.CtlGetSerialNumber)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(
		"reader:  %s\natr:     %s\ntype:    %s\nserial:  %x",
		reader.Name(), c.ATR().String(), sess.CardName(), serial,
	), nil
}
