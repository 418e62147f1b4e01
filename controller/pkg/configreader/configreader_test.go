package configreader

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"go.aporeto.io/nfregex/controller/pkg/counters"
	"go.aporeto.io/nfregex/controller/pkg/rules"
)

func token(prefix, pattern string) string {
	return prefix + hex.EncodeToString([]byte(pattern))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestRun(t *testing.T) {

	Convey("Given a reader on a store", t, func() {
		store := rules.NewStore()
		ack := &bytes.Buffer{}
		reader := New(store, rules.NewRegexpCompiler(16), ack)

		Convey("When I feed one valid line", func() {
			err := reader.Run(context.Background(), strings.NewReader(token("1C", "evil")+"\n"))

			Convey("Then the rule set should be installed", func() {
				So(err, ShouldBeNil)
				So(store.Version(), ShouldEqual, 1)
				So(store.Snapshot().Len(), ShouldEqual, 1)
				So(store.Snapshot().Check([]byte("evil"), rules.ClientToServer).Action, ShouldEqual, rules.Block)
				So(store.Snapshot().Check([]byte("evil"), rules.ServerToClient).Action, ShouldEqual, rules.Accept)
				So(ack.String(), ShouldEqual, "ACK OK\n")
			})
		})

		Convey("When I feed a line with malformed tokens", func() {
			before := counters.Default().Value(counters.RulesRejected)
			line := token("1C", "evil") + " 1C657 XC6576696c 1Czz " + token("0S", "secret")

			err := reader.Run(context.Background(), strings.NewReader(line))

			Convey("Then the malformed tokens should be skipped", func() {
				So(err, ShouldBeNil)
				So(store.Snapshot().Len(), ShouldEqual, 2)
				So(counters.Default().Value(counters.RulesRejected)-before, ShouldEqual, 3)
				So(ack.String(), ShouldEqual, "ACK FAIL 3 invalid rules\n")
			})
		})

		Convey("When I feed several lines", func() {
			input := token("1C", "evil") + "\n" + token("1S", "secret") + "\n"

			err := reader.Run(context.Background(), strings.NewReader(input))

			Convey("Then only the last line should be installed", func() {
				So(err, ShouldBeNil)
				So(store.Version(), ShouldEqual, 2)
				So(store.Snapshot().Check([]byte("evil"), rules.ClientToServer).Action, ShouldEqual, rules.Accept)
				So(store.Snapshot().Check([]byte("secret"), rules.ServerToClient).Action, ShouldEqual, rules.Block)
				So(ack.String(), ShouldEqual, "ACK OK\nACK OK\n")
			})
		})

		Convey("When I feed an empty line after a valid one", func() {
			err := reader.Run(context.Background(), strings.NewReader(token("1C", "evil")+"\n\n"))

			Convey("Then the empty set should be installed", func() {
				So(err, ShouldBeNil)
				So(store.Version(), ShouldEqual, 2)
				So(store.Snapshot().Len(), ShouldEqual, 0)
			})
		})

		Convey("When the feed fails", func() {
			err := reader.Run(context.Background(), failingReader{})

			Convey("Then I should get an error", func() {
				So(err, ShouldNotBeNil)
				So(store.Version(), ShouldEqual, 0)
				So(ack.Len(), ShouldEqual, 0)
			})
		})

		Convey("When the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			err := reader.Run(ctx, strings.NewReader(token("1C", "evil")+"\n"))

			Convey("Then no line should be applied", func() {
				So(err, ShouldEqual, context.Canceled)
				So(store.Version(), ShouldEqual, 0)
			})
		})
	})
}

func TestNewWithoutAck(t *testing.T) {

	Convey("Given a reader without an acknowledgement writer", t, func() {
		store := rules.NewStore()
		reader := New(store, rules.NewRegexpCompiler(16), nil)

		Convey("Then updates should still be applied", func() {
			So(reader.Apply(token("1C", "evil")), ShouldEqual, 1)
			So(store.Snapshot().Len(), ShouldEqual, 1)
		})
	})
}
