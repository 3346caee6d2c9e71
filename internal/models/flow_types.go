// Package models defines flow type definitions to avoid circular imports.
package models

// FlowType identifies a multi-step conversational flow.
type FlowType string

// StateType identifies a step within a flow. The empty StateType is the
// shared idle state.
type StateType string

// DataKey is a key into a conversation's state data bag.
type DataKey string

// Flow type constants, one per user-facing flow.
const (
	FlowWeather   FlowType = "weather"
	FlowFindImage FlowType = "find_image"
	FlowFindVideo FlowType = "find_video"
	FlowMovies    FlowType = "movies"
	FlowProxies   FlowType = "proxies"
	FlowIPInfo    FlowType = "ip_info"
	FlowPassword  FlowType = "password"
	FlowGenImage  FlowType = "gen_image"
	FlowGenVideo  FlowType = "gen_video"
	FlowDescribe  FlowType = "describe"
)

// StateIdle is the implicit idle state shared by all flows.
const StateIdle StateType = ""

// States for the weather flow.
const (
	StateWeatherCity StateType = "WEATHER_CITY"
	StateWeatherBusy StateType = "WEATHER_BUSY"
)

// States for the image search flow.
const (
	StateFindImageName  StateType = "FIND_IMAGE_NAME"
	StateFindImageCount StateType = "FIND_IMAGE_COUNT"
	StateFindImageBusy  StateType = "FIND_IMAGE_BUSY"
)

// States for the video search flow.
const (
	StateFindVideoName StateType = "FIND_VIDEO_NAME"
	StateFindVideoBusy StateType = "FIND_VIDEO_BUSY"
)

// States for the movie recommender flow.
const (
	StateMoviesName  StateType = "MOVIES_NAME"
	StateMoviesLimit StateType = "MOVIES_LIMIT"
	StateMoviesBusy  StateType = "MOVIES_BUSY"
)

// States for the proxy list flow.
const (
	StateProxiesBusy StateType = "PROXIES_BUSY"
)

// States for the IP lookup flow.
const (
	StateIPInfoAddr StateType = "IP_INFO_ADDR"
	StateIPInfoBusy StateType = "IP_INFO_BUSY"
)

// States for the password generator flow.
const (
	StatePasswordLength StateType = "PASSWORD_LENGTH"
)

// States for the image content analysis flow.
const (
	StateDescribeImage StateType = "DESCRIBE_IMAGE"
	StateDescribeBusy  StateType = "DESCRIBE_BUSY"
)

// States for the AI image generation flow.
const (
	StateGenImagePrompt StateType = "GEN_IMAGE_PROMPT"
	StateGenImageBusy   StateType = "GEN_IMAGE_BUSY"
)

// States for the browser-automation video generation flow. Progress is the
// long-task busy state: it accepts only the cancel token, which flips the
// cancel flag instead of clearing state, and Cancelling is held until the
// worker acknowledges termination.
const (
	StateGenVideoImage      StateType = "GEN_VIDEO_IMAGE"
	StateGenVideoPrompt     StateType = "GEN_VIDEO_PROMPT"
	StateGenVideoProgress   StateType = "GEN_VIDEO_PROGRESS"
	StateGenVideoCancelling StateType = "GEN_VIDEO_CANCELLING"
)

// Data key constants shared across flows.
const (
	DataKeyCity          DataKey = "city"
	DataKeyMode          DataKey = "mode"
	DataKeyName          DataKey = "name"
	DataKeyImagePath     DataKey = "imagePath"
	DataKeyProgress      DataKey = "counterProgress"
	DataKeyCancel        DataKey = "cancelRequested"
	DataKeyProgressMsgID DataKey = "progressMessageID"
)
