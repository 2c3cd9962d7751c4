// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package aleph

// Topic identifies a logical channel within a connection. Each topic maps to a muxer
// protocol ID
type Topic uint16

// Topic definitions
const (
	TopicHello Topic = iota
	TopicAuthentication
	TopicBlockSync
	TopicData
)

// List of valid topics for use in lookup functions
var topics = []Topic{
	TopicHello,
	TopicAuthentication,
	TopicBlockSync,
	TopicData,
}

var topicNames = map[Topic]string{
	TopicHello:          "hello",
	TopicAuthentication: "authentication",
	TopicBlockSync:      "block-sync",
	TopicData:           "data",
}

// TopicByName returns a predefined topic by name
func TopicByName(name string) (Topic, bool) {
	for _, topic := range topics {
		if topicNames[topic] == name {
			return topic, true
		}
	}
	return 0, false
}

func (t Topic) String() string {
	if name, ok := topicNames[t]; ok {
		return name
	}
	return "unknown"
}

// ProtocolId returns the muxer protocol ID used for the topic
func (t Topic) ProtocolId() uint16 {
	return uint16(t)
}
