package nfqparser

import (
	"bufio"
	"bytes"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// NFQParser holds nfqparser fields
type NFQParser struct {
	nfqStr   string
	filePath string
	contents map[string]NFQLayout

	sync.Mutex
}

// NewNFQParser returns nfqparser handler
func NewNFQParser() *NFQParser {
	return NewNFQParserWithPath(nfqFilePath)
}

// NewNFQParserWithPath returns a parser reading the queue statistics from path.
func NewNFQParserWithPath(path string) *NFQParser {

	return &NFQParser{
		contents: make(map[string]NFQLayout),
		filePath: path,
	}
}

// Synchronize reads from file and parses it. Queues that disappeared since
// the last call are forgotten.
func (n *NFQParser) Synchronize() error {

	n.Lock()
	defer n.Unlock()

	data, err := os.ReadFile(n.filePath)
	if err != nil {
		return err
	}

	n.nfqStr = string(data)
	n.contents = make(map[string]NFQLayout)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		lineParts := strings.Fields(scanner.Text())
		if len(lineParts) < nfqMinFields {
			continue
		}

		newNFQ := makeNFQLayout(lineParts)
		n.contents[newNFQ.QueueNum] = newNFQ
	}

	return scanner.Err()
}

// RetrieveByQueue returns layout for a specific queue number
func (n *NFQParser) RetrieveByQueue(queueNum string) *NFQLayout {

	n.Lock()
	defer n.Unlock()

	content, ok := n.contents[queueNum]
	if ok {
		return &content
	}

	return nil
}

// RetrieveByQueueNum returns layout for a specific queue number
func (n *NFQParser) RetrieveByQueueNum(queueNum uint16) *NFQLayout {
	return n.RetrieveByQueue(strconv.Itoa(int(queueNum)))
}

// RetrieveByField returns one field of every queue, in queue order,
// separated by spaces.
func (n *NFQParser) RetrieveByField(field Field) string {

	n.Lock()
	defer n.Unlock()

	values := []string{}
	for _, key := range n.sortedKeys() {
		content := n.contents[key]
		switch field {
		case FieldQueueNum:
			values = append(values, content.QueueNum)
		case FieldPeerPortID:
			values = append(values, content.PeerPortID)
		case FieldQueueTotal:
			values = append(values, content.QueueTotal)
		case FieldCopyMode:
			values = append(values, content.CopyMode)
		case FieldCopyRange:
			values = append(values, content.CopyRange)
		case FieldQueueDropped:
			values = append(values, content.QueueDropped)
		case FieldUserDropped:
			values = append(values, content.UserDropped)
		case FieldIDSequence:
			values = append(values, content.IDSequence)
		default:
			return "Unknown field"
		}
	}

	return strings.Join(values, " ")
}

// String returns string renresentation of nfqueue data
func (n *NFQParser) String() string {

	n.Lock()
	defer n.Unlock()

	return n.nfqStr
}

// sortedKeys returns the queue numbers in numeric order.
func (n *NFQParser) sortedKeys() []string {

	var keys []string
	for key := range n.contents {
		keys = append(keys, key)
	}

	sort.Slice(keys, func(i, j int) bool {
		a, _ := strconv.Atoi(keys[i])
		b, _ := strconv.Atoi(keys[j])
		return a < b
	})

	return keys
}

func makeNFQLayout(data []string) NFQLayout {

	return NFQLayout{
		QueueNum:     data[0],
		PeerPortID:   data[1],
		QueueTotal:   data[2],
		CopyMode:     data[3],
		CopyRange:    data[4],
		QueueDropped: data[5],
		UserDropped:  data[6],
		IDSequence:   data[7],
	}
}
