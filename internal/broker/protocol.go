package broker

// Gateway wire frames. The gateway speaks a merge-diff protocol: every
// server frame carries a list of partial JSON documents that are merged
// into the client's mirror of the session state.

type serverFrame struct {
	Aid  string                   `json:"aid"`
	Data []map[string]interface{} `json:"data,omitempty"`
}

type loginRequest struct {
	Aid      string `json:"aid"`
	BrokerID string `json:"bid"`
	UserName string `json:"user_name"`
	Password string `json:"password"`
}

type subscribeQuoteRequest struct {
	Aid     string `json:"aid"`
	InsList string `json:"ins_list"`
}

type insertOrderRequest struct {
	Aid          string   `json:"aid"`
	UserID       string   `json:"user_id"`
	OrderID      string   `json:"order_id"`
	ExchangeID   string   `json:"exchange_id"`
	InstrumentID string   `json:"instrument_id"`
	Direction    string   `json:"direction"`
	Offset       string   `json:"offset"`
	VolumeOrign  int64    `json:"volume"`
	PriceType    string   `json:"price_type"`
	LimitPrice   *float64 `json:"limit_price,omitempty"`
}

type cancelOrderRequest struct {
	Aid     string `json:"aid"`
	UserID  string `json:"user_id"`
	OrderID string `json:"order_id"`
}

// mergeDiff applies one partial document onto the mirror in place. Nested
// objects are merged recursively, scalars are replaced, explicit nulls
// delete the key.
func mergeDiff(dst map[string]interface{}, src map[string]interface{}) {
	for k, v := range src {
		if v == nil {
			delete(dst, k)
			continue
		}
		srcMap, srcIsMap := v.(map[string]interface{})
		if !srcIsMap {
			dst[k] = v
			continue
		}
		dstMap, dstIsMap := dst[k].(map[string]interface{})
		if !dstIsMap {
			dstMap = make(map[string]interface{}, len(srcMap))
			dst[k] = dstMap
		}
		mergeDiff(dstMap, srcMap)
	}
}

// Mirror path helpers. Numbers arrive as float64 from encoding/json.

func getMap(m map[string]interface{}, keys ...string) map[string]interface{} {
	cur := m
	for _, k := range keys {
		next, ok := cur[k].(map[string]interface{})
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

func getString(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func getFloat(m map[string]interface{}, key string) float64 {
	f, _ := m[key].(float64)
	return f
}

func getInt(m map[string]interface{}, key string) int64 {
	f, _ := m[key].(float64)
	return int64(f)
}

func getBool(m map[string]interface{}, key string) bool {
	b, _ := m[key].(bool)
	return b
}
