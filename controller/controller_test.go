package controller

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	. "github.com/smartystreets/goconvey/convey"
	"go.aporeto.io/nfregex/collector"
	"go.aporeto.io/nfregex/controller/internal/nfqueue"
	"go.aporeto.io/nfregex/controller/internal/nfqueue/mocknfqueue"
	"go.aporeto.io/nfregex/controller/pkg/env"
	"go.aporeto.io/nfregex/controller/pkg/fqconfig"
	nferrors "go.aporeto.io/nfregex/utils/errors"
	"go.aporeto.io/nfregex/utils/nfqparser"
)

type noStats struct{}

func (noStats) Synchronize() error                             { return errors.New("not available") }
func (noStats) RetrieveByQueueNum(uint16) *nfqparser.NFQLayout { return nil }
func (noStats) RetrieveByField(nfqparser.Field) string         { return "" }

// testOpener returns mock handles that block in Receive until closed.
// Queues in foreign are owned by another process.
func testOpener(ctrl *gomock.Controller, foreign ...uint16) *mocknfqueue.MockOpener {

	owned := map[uint16]bool{}
	for _, q := range foreign {
		owned[q] = true
	}

	opener := mocknfqueue.NewMockOpener(ctrl)
	opener.EXPECT().Open(gomock.Any()).DoAndReturn(func(num uint16) (nfqueue.Handle, error) {
		if owned[num] {
			return nil, nferrors.NewError(nferrors.QueueBindConflict, "queue", "busy")
		}

		closed := make(chan struct{})
		var once sync.Once

		h := mocknfqueue.NewMockHandle(ctrl)
		h.EXPECT().Number().Return(num).AnyTimes()
		h.EXPECT().Receive().DoAndReturn(func() ([]*nfqueue.Message, error) {
			<-closed
			return nil, errors.New("closed")
		}).AnyTimes()
		h.EXPECT().Close().DoAndReturn(func() error {
			once.Do(func() { close(closed) })
			return nil
		}).AnyTimes()

		return h, nil
	}).AnyTimes()

	return opener
}

func TestController(t *testing.T) {

	Convey("Given a controller with four threads", t, func() {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		diagnostics := &bytes.Buffer{}
		bus := collector.NewBus()

		c := New(
			OptionFqConfig(fqconfig.NewFilterQueue(4, 1000, 0, false, 0)),
			OptionDiagnostics(diagnostics),
			OptionEventBus(bus),
			optionOpener(testOpener(ctrl, 1001)),
			optionKernelStats(noStats{}),
		)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		Convey("When I start it", func() {
			err := c.Start(ctx)
			defer c.Stop() // nolint: errcheck

			Convey("Then the queue ranges should be reported", func() {
				So(err, ShouldBeNil)

				input, output := c.Ranges()
				So(input, ShouldResemble, QueueRange{Start: 1002, End: 1003})
				So(output, ShouldResemble, QueueRange{Start: 1004, End: 1005})
				So(diagnostics.String(), ShouldEqual, "QUEUES INPUT 1002 1003 OUTPUT 1004 1005\n")
			})

			Convey("Then starting again should fail", func() {
				So(c.Start(ctx), ShouldNotBeNil)
			})

			Convey("When I update the rules", func() {
				So(c.UpdateRules("1C"+hex.EncodeToString([]byte("evil"))), ShouldEqual, 1)

				Convey("Then the config feed should replace them", func() {
					So(c.Run(ctx, strings.NewReader("\n")), ShouldBeNil)
					So(c.(*nfregex).store.Version(), ShouldEqual, 2)
					So(c.(*nfregex).store.Snapshot().Len(), ShouldEqual, 0)
					So(diagnostics.String(), ShouldEqual, "QUEUES INPUT 1002 1003 OUTPUT 1004 1005\nACK OK\nACK OK\n")
				})
			})

			Convey("When I stop it", func() {
				So(c.Stop(), ShouldBeNil)

				Convey("Then no worker should run", func() {
					So(c.(*nfregex).pools.Running(), ShouldEqual, 0)
				})
			})
		})
	})

	Convey("Given no queue can be allocated", t, func() {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		c := New(
			OptionFqConfig(fqconfig.NewFilterQueue(4, 65535, 0, false, 0)),
			optionOpener(testOpener(ctrl)),
			optionKernelStats(noStats{}),
		)

		Convey("Then start should fail with a resource exhausted error", func() {
			err := c.Start(context.Background())
			So(err, ShouldNotBeNil)
			So(nferrors.KindOf(err), ShouldEqual, nferrors.ResourceExhausted)

			input, output := c.Ranges()
			So(input, ShouldResemble, QueueRange{})
			So(output, ShouldResemble, QueueRange{})
		})
	})
}

func TestOptionsFromParameters(t *testing.T) {

	Convey("Given parameters from the environment", t, func() {
		p, err := env.GetParametersFrom(func(key string) (string, bool) {
			m := map[string]string{"NTHREADS": "6", "NFREGEX_QUEUE_BASE": "3000", "NFREGEX_CONNMARK": "5", "NFREGEX_READ_BUFFER": "4194304"}
			v, ok := m[key]
			return v, ok
		})
		So(err, ShouldBeNil)

		Convey("Then the options should carry them", func() {
			cfg := defaultConfig()
			for _, opt := range OptionsFromParameters(p) {
				opt(cfg)
			}
			So(cfg.fq.NumberOfInputQueues, ShouldEqual, 3)
			So(cfg.fq.NumberOfOutputQueues, ShouldEqual, 3)
			So(cfg.fq.QueueBase, ShouldEqual, 3000)
			So(cfg.fq.ConnMark, ShouldEqual, 5)
			So(cfg.statsInterval, ShouldEqual, p.StatsInterval)
			So(cfg.readBuffer, ShouldEqual, 4194304)
		})
	})

	Convey("Given a controller with a socket read buffer", t, func() {
		n := New(OptionReadBuffer(1 << 20)).(*nfregex)

		Convey("Then the queue opener should apply it", func() {
			opener, err := n.queueOpener()
			So(err, ShouldBeNil)
			qo, ok := opener.(*nfqueue.QueueOpener)
			So(ok, ShouldBeTrue)
			So(qo.Config.ReadBuffer, ShouldEqual, 1<<20)
			So(qo.Config.FailOpen, ShouldEqual, n.config.fq.FailOpen)
		})
	})
}
