package models

// SpeakerRole 定义了消息发送者的角色。
type SpeakerRole string

const (
	SpeakerUser  SpeakerRole = "user"  // 用户角色。
	SpeakerModel SpeakerRole = "model" // 模型角色。
)

// Content 是一条消息，由若干个部分组成，每个部分可以是不同的模态。
type Content struct {
	Parts []*Part     `json:"parts,omitempty"`
	Role  SpeakerRole `json:"role,omitempty"` // 'user' 或 'model'。
}

// GenerateContentRequest 是发给 LLM 客户端的生成请求。
// 请求自带完整上下文，LLM 客户端不保存任何会话状态。
type GenerateContentRequest struct {
	Content []Content `json:"content,omitempty"`
}

// GenerateContentResponse 是 LLM 客户端返回的生成结果。
// ResponseID 和 ModelVersion 只有部分提供商会填。
type GenerateContentResponse struct {
	Content      []Content `json:"content,omitempty"`
	ResponseID   string    `json:"responseId,omitempty"`
	ModelVersion string    `json:"modelVersion,omitempty"`
}

// Part 是消息的单个部分。各字段互斥，同一时间只应设置其中一个。
type Part struct {
	// 内联的二进制数据，例如随问题上传的图片。
	InlineData *Blob `json:"inlineData,omitempty"`
	// 指向已上传文件的引用。
	FileData *FileData `json:"fileData,omitempty"`
	// 模型执行代码的结果。
	CodeExecutionResult *CodeExecutionResult `json:"codeExecutionResult,omitempty"`
	// 模型生成的待执行代码。
	ExecutableCode *ExecutableCode `json:"executableCode,omitempty"`
	// 模型发起的函数调用。
	FunctionCall *FunctionCall `json:"functionCall,omitempty"`
	// 客户端对函数调用的应答，作为模型的上下文。
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
	// 纯文本。
	Text string `json:"text,omitempty"`
}

// Blob 是内联的二进制数据。
type Blob struct {
	Data     []byte `json:"data,omitempty"`
	MIMEType string `json:"mimeType,omitempty"` // IANA 标准 MIME 类型。
}

// FileData 是按 URI 引用的文件数据。
type FileData struct {
	FileURI  string `json:"fileUri,omitempty"`
	MIMEType string `json:"mimeType,omitempty"` // IANA 标准 MIME 类型。
}

// Outcome 是代码执行的结束状态。
type Outcome string

// CodeExecutionResult 是模型代码执行的结果。
// 执行成功时 Output 是 stdout，失败时是 stderr 或其他错误描述。
type CodeExecutionResult struct {
	Outcome Outcome `json:"outcome,omitempty"`
	Output  string  `json:"output,omitempty"`
}

// Language 是 ExecutableCode 的编程语言。
type Language string

// ExecutableCode 是模型生成的待执行代码。
type ExecutableCode struct {
	Code     string   `json:"code,omitempty"`
	Language Language `json:"language,omitempty"`
}

// FunctionCall 是模型发起的函数调用，Name 对应声明过的函数名。
type FunctionCall struct {
	Args map[string]any `json:"args,omitempty"`
	Name string         `json:"name,omitempty"`
}

// FunctionResponse 是客户端回传的函数调用结果。
// Response 用 "output" 键放函数输出，用 "error" 键放错误详情；
// 两个键都没有时整个对象被当作输出。
type FunctionResponse struct {
	Name     string         `json:"name,omitempty"`
	Response map[string]any `json:"response,omitempty"`
}
