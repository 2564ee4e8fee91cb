package transport

import (
	"testing"
	"time"
)

func TestPointToPointOutOfOrder(t *testing.T) {
	comms := NewWorld(2)

	// the receive is posted before the send exists, and a second message
	// with a different tag arrives first
	done := make(chan []float64, 1)
	go func() {
		req := comms[1].Irecv(0, 7)
		done <- req.Wait()
	}()
	time.Sleep(10 * time.Millisecond)
	comms[0].Isend(1, 9, []float64{9, 9})
	comms[0].Isend(1, 7, []float64{1, 2, 3})

	got := <-done
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("wrong payload: %v", got)
	}
	if buf := comms[1].Irecv(0, 9).Wait(); buf[0] != 9 {
		t.Fatalf("tag-9 message lost: %v", buf)
	}
}

func TestRequestTest(t *testing.T) {
	comms := NewWorld(1)
	req := comms[0].Irecv(0, 1)
	if _, ok := req.Test(); ok {
		t.Fatal("Test reported a message before any send")
	}
	comms[0].Isend(0, 1, []float64{5})
	if buf, ok := req.Test(); !ok || buf[0] != 5 {
		t.Fatalf("Test missed the message: %v %v", buf, ok)
	}
}

func TestMessageOrderPreservedPerTag(t *testing.T) {
	comms := NewWorld(1)
	comms[0].Isend(0, 3, []float64{1})
	comms[0].Isend(0, 3, []float64{2})
	if buf := comms[0].Irecv(0, 3).Wait(); buf[0] != 1 {
		t.Fatalf("first message out of order: %v", buf)
	}
	if buf := comms[0].Irecv(0, 3).Wait(); buf[0] != 2 {
		t.Fatalf("second message out of order: %v", buf)
	}
}

func TestCollectives(t *testing.T) {
	err := Run(3, func(c *Comm) error {
		v := float64(c.Rank() + 1)
		if min := c.AllReduceMin(v); min != 1 {
			t.Errorf("rank %d: AllReduceMin = %g, want 1", c.Rank(), min)
		}

		sum := []float64{float64(c.Rank()), 1}
		c.AllReduceSum(sum)
		if sum[0] != 3 || sum[1] != 3 {
			t.Errorf("rank %d: AllReduceSum = %v, want [3 3]", c.Rank(), sum)
		}

		gathered := c.AllGatherInt(c.Rank() * 10)
		for r, g := range gathered {
			if g != r*10 {
				t.Errorf("rank %d: AllGatherInt[%d] = %d", c.Rank(), r, g)
			}
		}

		c.Barrier()

		parts := c.Exchange([]int{c.Rank()})
		if len(parts) != 3 {
			t.Errorf("rank %d: Exchange returned %d parts", c.Rank(), len(parts))
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestIsendCopiesPayload(t *testing.T) {
	comms := NewWorld(1)
	buf := []float64{1, 2}
	comms[0].Isend(0, 1, buf)
	buf[0] = 99
	if got := comms[0].Irecv(0, 1).Wait(); got[0] != 1 {
		t.Fatalf("send did not copy the payload: %v", got)
	}
}
